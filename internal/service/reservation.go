package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// ReservationService is the lifecycle manager for reservations. It
// owns the state-transition rules and delegates persistence to the
// injected Store; every mutating path runs its validation and write
// inside a single Store.InTx transaction.
type ReservationService struct {
	store Store
	now   func() time.Time // injectable clock for tests
}

// NewReservationService constructs a ReservationService bound to the
// given store.
func NewReservationService(store Store) *ReservationService {
	if store == nil {
		panic("nil store passed to NewReservationService")
	}
	return &ReservationService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput carries the caller-supplied fields of a new reservation.
type CreateInput struct {
	StartTime      time.Time
	EndTime        time.Time
	ApplicantCount int
}

// UpdateInput carries the optional fields of an update. Nil pointers
// leave the current value untouched. Start and end must be provided
// together.
type UpdateInput struct {
	StartTime      *time.Time
	EndTime        *time.Time
	ApplicantCount *int
	State          *model.ReservationState
}

// ConfirmFailure reports why a single id in a bulk confirm batch was
// not confirmed.
type ConfirmFailure struct {
	ID    uint64 `json:"id"`
	Error string `json:"error"`
}

// ListQuery narrows and paginates a reservation listing. Size and
// Page must be provided together; pages are 1-indexed.
type ListQuery struct {
	Date *time.Time
	Size *int
	Page *int
}

// rolePermissions is the transition guard's permission table. It is
// consulted once per update instead of re-deriving role checks ad hoc
// at each field.
type permissions struct {
	editConfirmed bool // may mutate confirmed reservations
	setAnyState   bool // may set any target state, not just canceled
	anyOwner      bool // may act on reservations owned by others
}

var rolePermissions = map[model.Role]permissions{
	model.RoleAdmin: {editConfirmed: true, setAnyState: true, anyOwner: true},
	model.RoleUser:  {},
}

// checkFields validates the static field constraints shared by create
// and update: ordered interval and applicant count within (0, 50000].
func checkFields(start, end time.Time, count int) error {
	if !start.Before(end) {
		return validationf("start time must be before end time")
	}
	if count <= 0 || count > model.MaxApplicantCount {
		return validationf("applicant count must be between 1 and %d", model.MaxApplicantCount)
	}
	return nil
}

// validateSchedule is the conflict validator: it fails when the user
// already holds a confirmed reservation overlapping [start, end), or
// when any hour in the window cannot take count more applicants. A
// capacity failure enumerates every slot in the window that still has
// remaining capacity so the caller can pick an alternative.
func validateSchedule(ctx context.Context, q Querier, userID uint64, start, end time.Time, count int, excludeID uint64) error {
	overlap, err := q.ConfirmedOverlapExists(ctx, userID, start, end, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return validationf("an overlapping confirmed reservation already exists")
	}

	av, err := ScanWindow(ctx, q, start, end, count, excludeID)
	if err != nil {
		return err
	}
	if len(av.NotAvailable) == 0 {
		return nil
	}

	slots := make([]SlotAvailability, 0, len(av.Available)+len(av.NotAvailable))
	slots = append(slots, av.Available...)
	slots = append(slots, av.NotAvailable...)
	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })

	var lines []string
	for _, slot := range slots {
		if slot.AvailableCount > 0 {
			lines = append(lines, FormatTimeRange(slot.Time)+" "+strconv.Itoa(slot.AvailableCount))
		}
	}
	msg := "applicant capacity exceeded"
	if len(lines) > 0 {
		msg += "\navailable time slots\n" + strings.Join(lines, "\n")
	}
	return &ValidationError{Msg: msg}
}

// Create books a new pending reservation for the acting user. Only
// the user role books; the start must be at least three days out; the
// window must pass the conflict validator. Validation and insert run
// in one transaction so concurrent creates on the same hours cannot
// both slip past the capacity check.
func (s *ReservationService) Create(ctx context.Context, actor model.Identity, in CreateInput) (*model.Reservation, error) {
	if actor.Role != model.RoleUser {
		return nil, ErrForbidden
	}
	if err := checkFields(in.StartTime, in.EndTime, in.ApplicantCount); err != nil {
		return nil, err
	}
	if in.StartTime.Before(s.now().Add(model.MinLeadTime)) {
		return nil, validationf("reservations must be made at least 3 days before the exam starts")
	}

	var out *model.Reservation
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := validateSchedule(ctx, tx, actor.UserID, in.StartTime, in.EndTime, in.ApplicantCount, 0); err != nil {
			return err
		}
		now := s.now()
		r := &model.Reservation{
			UserID:         actor.UserID,
			StartTime:      in.StartTime,
			EndTime:        in.EndTime,
			ApplicantCount: in.ApplicantCount,
			State:          model.StatePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Insert(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies field and/or state changes to a reservation under the
// transition rules. The full schedule validation re-runs on every
// update against the reservation's current values, excluding its own
// id, even when no field changed. A state change is applied only when
// the caller is an admin or the requested state is canceled; a
// non-admin asking for confirmed is ignored without error (confirm is
// admin-only via the bulk endpoint, and the original behaved exactly
// this way).
func (s *ReservationService) Update(ctx context.Context, actor model.Identity, id uint64, in UpdateInput) (*model.Reservation, error) {
	if (in.StartTime == nil) != (in.EndTime == nil) {
		return nil, validationf("start time and end time must be provided together")
	}
	if in.State != nil && !in.State.Valid() {
		return nil, validationf("unknown reservation state %q", *in.State)
	}

	var out *model.Reservation
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		perms := rolePermissions[actor.Role]
		if !perms.anyOwner && r.UserID != actor.UserID {
			return validationf("invalid reservation")
		}
		if r.State == model.StateCanceled {
			return validationf("reservation has been canceled")
		}
		if r.State == model.StateConfirmed && !perms.editConfirmed {
			return validationf("confirmed reservations can only be modified by an administrator")
		}

		if in.StartTime != nil {
			r.StartTime = *in.StartTime
			r.EndTime = *in.EndTime
		}
		if in.ApplicantCount != nil {
			r.ApplicantCount = *in.ApplicantCount
		}
		if err := checkFields(r.StartTime, r.EndTime, r.ApplicantCount); err != nil {
			return err
		}
		if err := validateSchedule(ctx, tx, r.UserID, r.StartTime, r.EndTime, r.ApplicantCount, r.ID); err != nil {
			return err
		}

		if in.State != nil && (perms.setAnyState || *in.State == model.StateCanceled) {
			r.State = *in.State
		}

		r.UpdatedAt = s.now()
		if err := tx.Update(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel marks a reservation canceled. It is the update transition
// with a canceled target state, so owners and admins may cancel and a
// second cancel fails because canceled is terminal.
func (s *ReservationService) Cancel(ctx context.Context, actor model.Identity, id uint64) error {
	state := model.StateCanceled
	_, err := s.Update(ctx, actor, id, UpdateInput{State: &state})
	return err
}

// BulkConfirm confirms each listed reservation independently. Only
// admins may call it. Ids that fail are collected with their error
// message; ids that succeed are returned as confirmed reservations so
// callers can publish events for them. A failing id never aborts the
// batch, and each id commits in its own transaction, so partial
// success is the expected outcome.
func (s *ReservationService) BulkConfirm(ctx context.Context, actor model.Identity, ids []uint64) ([]model.Reservation, []ConfirmFailure, error) {
	if !actor.IsAdmin() {
		return nil, nil, ErrForbidden
	}

	state := model.StateConfirmed
	confirmed := make([]model.Reservation, 0, len(ids))
	failures := make([]ConfirmFailure, 0)
	for _, id := range ids {
		r, err := s.Update(ctx, actor, id, UpdateInput{State: &state})
		if err != nil {
			failures = append(failures, ConfirmFailure{ID: id, Error: err.Error()})
			continue
		}
		confirmed = append(confirmed, *r)
	}
	return confirmed, failures, nil
}

// List returns reservations visible to the actor. Non-admins only see
// their own. The optional date restricts to that calendar day; size
// and page paginate with 1-indexed pages and must come as a pair.
func (s *ReservationService) List(ctx context.Context, actor model.Identity, q ListQuery) ([]model.Reservation, error) {
	if (q.Size == nil) != (q.Page == nil) {
		return nil, validationf("size and page must be provided together")
	}

	var f ListFilter
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	if q.Date != nil {
		dayStart := q.Date.Truncate(24 * time.Hour)
		f.DayStart = &dayStart
	}
	if q.Size != nil {
		if *q.Size < 1 || *q.Page < 1 {
			return nil, validationf("size and page must be positive")
		}
		f.Limit = *q.Size
		f.Offset = *q.Size * (*q.Page - 1)
	}
	return s.store.List(ctx, f)
}
