package service

import (
	"context"
	"time"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// ListFilter narrows the rows returned by Querier.List. A zero UserID
// means all users; a nil DayStart disables the date restriction. Limit
// of zero disables pagination.
type ListFilter struct {
	UserID   uint64
	DayStart *time.Time // restricts to [DayStart, DayStart+24h)
	Limit    int
	Offset   int
}

// Querier is the read side of reservation storage. It is implemented
// both by the standalone store and by in-flight transactions so the
// validator can run against either.
type Querier interface {
	// GetByID returns the reservation with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)

	// List returns reservations matching the filter, ordered by
	// ascending start time with id as tiebreaker.
	List(ctx context.Context, f ListFilter) ([]model.Reservation, error)

	// SumConfirmedCovering sums applicant_count over confirmed
	// reservations whose interval fully contains [hourStart, hourEnd).
	// A nonzero excludeID is left out of the sum.
	SumConfirmedCovering(ctx context.Context, hourStart, hourEnd time.Time, excludeID uint64) (int, error)

	// ConfirmedOverlapExists reports whether the user holds a confirmed
	// reservation intersecting the half-open interval [start, end),
	// excluding excludeID when nonzero.
	ConfirmedOverlapExists(ctx context.Context, userID uint64, start, end time.Time, excludeID uint64) (bool, error)

	// ConfirmedByUserOnDay returns the user's confirmed reservations
	// falling within [dayStart, dayStart+24h).
	ConfirmedByUserOnDay(ctx context.Context, userID uint64, dayStart time.Time) ([]model.Reservation, error)
}

// Tx extends Querier with write operations. All writes happen inside
// a transaction obtained from Store.InTx.
type Tx interface {
	Querier

	// Insert persists a new reservation and assigns its ID.
	Insert(ctx context.Context, r *model.Reservation) error

	// Update persists all mutable fields of an existing reservation.
	Update(ctx context.Context, r *model.Reservation) error
}

// Store is the storage handle injected into the reservation service.
// InTx must run fn inside a transaction that serializes concurrent
// writers touching the same hours; otherwise two concurrent creates
// could both pass the capacity check and together exceed the ceiling.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
