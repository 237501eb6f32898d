package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
	"github.com/iliyamo/exam-slot-reservation/internal/service"
)

// ReservationRepo provides CRUD and capacity queries for reservations
// backed by MySQL. It implements service.Store; the inner transaction
// type implements service.Tx so the same queries run against either a
// *sql.DB or an open *sql.Tx. All timestamps are stored in UTC.
type ReservationRepo struct {
	reservationQueries
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{reservationQueries: reservationQueries{q: db}, db: db}
}

// InTx runs fn inside a serializable transaction and commits when fn
// returns nil. Serializable isolation makes concurrent validate+write
// sequences on the same hours run one after the other, which is what
// keeps the per-hour capacity invariant from being broken by two
// writers that each pass the check. The transaction is rolled back
// unless committed.
func (r *ReservationRepo) InTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&reservationTx{reservationQueries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// reservationQueries holds the read-side queries shared by the repo
// and its transactions.
type reservationQueries struct {
	q dbtx
}

// reservationTx adds the write operations available inside InTx.
type reservationTx struct {
	reservationQueries
}

const reservationColumns = `id, user_id, start_time, end_time, applicant_count, state, created_at, updated_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.StartTime, &r.EndTime, &r.ApplicantCount, &r.State, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByID returns a single reservation or service.ErrNotFound.
func (s reservationQueries) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(s.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	return r, err
}

// List returns reservations matching the filter ordered by ascending
// start time, id as tiebreaker for deterministic pagination.
func (s reservationQueries) List(ctx context.Context, f service.ListFilter) ([]model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	args := make([]interface{}, 0, 5)
	if f.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.DayStart != nil {
		query += ` AND start_time >= ? AND end_time < ?`
		args = append(args, *f.DayStart, f.DayStart.Add(24*time.Hour))
	}
	query += ` ORDER BY start_time, id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SumConfirmedCovering sums applicant counts over confirmed
// reservations whose interval fully contains [hourStart, hourEnd).
func (s reservationQueries) SumConfirmedCovering(ctx context.Context, hourStart, hourEnd time.Time, excludeID uint64) (int, error) {
	query := `SELECT COALESCE(SUM(applicant_count), 0) FROM reservations
	          WHERE state = ? AND start_time <= ? AND end_time >= ?`
	args := []interface{}{model.StateConfirmed, hourStart, hourEnd}
	if excludeID != 0 {
		query += ` AND id <> ?`
		args = append(args, excludeID)
	}
	var sum int
	err := s.q.QueryRowContext(ctx, query, args...).Scan(&sum)
	return sum, err
}

// ConfirmedOverlapExists reports whether the user holds a confirmed
// reservation intersecting [start, end) via the half-open overlap
// test start_time < end AND end_time > start.
func (s reservationQueries) ConfirmedOverlapExists(ctx context.Context, userID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM reservations
	          WHERE user_id = ? AND state = ? AND start_time < ? AND end_time > ?`
	args := []interface{}{userID, model.StateConfirmed, end, start}
	if excludeID != 0 {
		query += ` AND id <> ?`
		args = append(args, excludeID)
	}
	query += `)`
	var exists bool
	err := s.q.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, err
}

// ConfirmedByUserOnDay returns the user's confirmed reservations on
// the calendar day starting at dayStart.
func (s reservationQueries) ConfirmedByUserOnDay(ctx context.Context, userID uint64, dayStart time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE user_id = ? AND state = ? AND start_time >= ? AND end_time < ?
	           ORDER BY start_time, id`
	rows, err := s.q.QueryContext(ctx, q, userID, model.StateConfirmed, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Insert persists a new reservation and populates its generated ID.
func (t *reservationTx) Insert(ctx context.Context, r *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (user_id, start_time, end_time, applicant_count, state, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.q.ExecContext(ctx, q, r.UserID, r.StartTime, r.EndTime, r.ApplicantCount, r.State, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

// Update persists the mutable fields of an existing reservation.
func (t *reservationTx) Update(ctx context.Context, r *model.Reservation) error {
	const q = `UPDATE reservations
	           SET start_time = ?, end_time = ?, applicant_count = ?, state = ?, updated_at = ?
	           WHERE id = ?`
	// RowsAffected is not checked: MySQL reports zero when the values
	// are unchanged, and existence was already verified in this tx.
	_, err := t.q.ExecContext(ctx, q, r.StartTime, r.EndTime, r.ApplicantCount, r.State, r.UpdatedAt, r.ID)
	return err
}
