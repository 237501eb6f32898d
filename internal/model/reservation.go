package model

import "time"

// ReservationState enumerates the lifecycle states of a reservation.
// A reservation starts out pending, becomes confirmed through the
// admin bulk-confirm flow, and is canceled by its owner or an admin.
// Canceled is terminal; no further mutation is allowed.
type ReservationState string

const (
	StatePending   ReservationState = "pending"
	StateConfirmed ReservationState = "confirmed"
	StateCanceled  ReservationState = "canceled"
)

// Valid reports whether s is one of the known reservation states.
func (s ReservationState) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StateCanceled:
		return true
	}
	return false
}

// MaxApplicantCount is the per-hour capacity ceiling.  The sum of
// applicant counts across confirmed reservations covering any single
// clock hour must never exceed it.
const MaxApplicantCount = 50000

// MinLeadTime is the minimum advance notice required between the
// moment a reservation is created and its start time.
const MinLeadTime = 72 * time.Hour

// Reservation records a user's booking of an exam time window.
// StartTime/EndTime form a half-open interval; capacity accounting
// rounds the interval outward to the hour grid.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – user who requested the reservation; immutable.
//  StartTime      – beginning of the reserved window (inclusive).
//  EndTime        – end of the reserved window (exclusive).
//  ApplicantCount – number of applicants, in (0, 50000].
//  State          – lifecycle state (pending, confirmed, canceled).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – bumped on every successful mutation.
type Reservation struct {
	ID             uint64           `json:"id"`              // reservations.id
	UserID         uint64           `json:"user_id"`         // reservations.user_id
	StartTime      time.Time        `json:"start_time"`      // reservations.start_time
	EndTime        time.Time        `json:"end_time"`        // reservations.end_time
	ApplicantCount int              `json:"applicant_count"` // reservations.applicant_count
	State          ReservationState `json:"state"`           // reservations.state
	CreatedAt      time.Time        `json:"created_at"`      // reservations.created_at
	UpdatedAt      time.Time        `json:"updated_at"`      // reservations.updated_at
}

// Overlaps reports whether the reservation's interval intersects the
// half-open interval [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}
