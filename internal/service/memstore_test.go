package service

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// memStore is an in-memory Store used by the service tests. InTx
// snapshots the state up front and restores it when fn fails, which
// mirrors the rollback behavior of the SQL store closely enough for
// the lifecycle tests.
type memStore struct {
	nextID uint64
	items  map[uint64]*model.Reservation
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uint64]*model.Reservation)}
}

// seed inserts a reservation directly, bypassing validation.
func (m *memStore) seed(r model.Reservation) uint64 {
	m.nextID++
	r.ID = m.nextID
	m.items[r.ID] = &r
	return r.ID
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	for _, r := range m.items {
		if f.UserID != 0 && r.UserID != f.UserID {
			continue
		}
		if f.DayStart != nil {
			dayEnd := f.DayStart.Add(24 * time.Hour)
			if r.StartTime.Before(*f.DayStart) || !r.EndTime.Before(dayEnd) {
				continue
			}
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return []model.Reservation{}, nil
		}
		out = out[f.Offset:]
		if len(out) > f.Limit {
			out = out[:f.Limit]
		}
	}
	return out, nil
}

func (m *memStore) SumConfirmedCovering(_ context.Context, hourStart, hourEnd time.Time, excludeID uint64) (int, error) {
	sum := 0
	for _, r := range m.items {
		if r.State != model.StateConfirmed {
			continue
		}
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if !r.StartTime.After(hourStart) && !r.EndTime.Before(hourEnd) {
			sum += r.ApplicantCount
		}
	}
	return sum, nil
}

func (m *memStore) ConfirmedOverlapExists(_ context.Context, userID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	for _, r := range m.items {
		if r.UserID != userID || r.State != model.StateConfirmed {
			continue
		}
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if r.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ConfirmedByUserOnDay(_ context.Context, userID uint64, dayStart time.Time) ([]model.Reservation, error) {
	dayEnd := dayStart.Add(24 * time.Hour)
	out := make([]model.Reservation, 0)
	for _, r := range m.items {
		if r.UserID != userID || r.State != model.StateConfirmed {
			continue
		}
		if r.StartTime.Before(dayStart) || !r.EndTime.Before(dayEnd) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memStore) Insert(_ context.Context, r *model.Reservation) error {
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, r *model.Reservation) error {
	if _, ok := m.items[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	snapshot := make(map[uint64]*model.Reservation, len(m.items))
	for id, r := range m.items {
		cp := *r
		snapshot[id] = &cp
	}
	savedID := m.nextID
	if err := fn(m); err != nil {
		m.items = snapshot
		m.nextID = savedID
		return err
	}
	return nil
}
