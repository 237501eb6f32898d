// Package queue defines the reservation.confirmed message payload and
// the publisher/consumer pair exchanging it over RabbitMQ.
package queue

// ReservationConfirmedEvent is published when an admin confirms a
// reservation. It carries enough information for downstream consumers
// to audit or notify without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID  uint64 `json:"reservation_id"`
	UserID         uint64 `json:"user_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	ApplicantCount int    `json:"applicant_count"`
	ConfirmedAt    string `json:"confirmed_at"`
}
