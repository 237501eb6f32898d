package service

import (
	"context"
	"time"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// hourLayout formats slot labels, e.g. "10:00".
const hourLayout = "15:04"

// SlotAvailability pairs an hour slot label with the remaining
// capacity for that hour.
type SlotAvailability struct {
	Time           string `json:"time"`
	AvailableCount int    `json:"available_count"`
}

// Availability is the result of a window scan, partitioned into slots
// that can take the probed applicant count and slots that cannot.
// Both sequences are in chronological order.
type Availability struct {
	Available    []SlotAvailability `json:"available_times"`
	NotAvailable []SlotAvailability `json:"not_available_times"`
}

// SlotRange is an availability row for the per-day listing, with the
// slot rendered as an hour range ("10:00 ~ 11:00").
type SlotRange struct {
	Time           string `json:"time"`
	AvailableCount int    `json:"available_count"`
}

// ScanWindow walks the hour grid across [start, end) and classifies
// each slot [h, h+1h) by whether it can still take applicantCount more
// applicants on top of the confirmed reservations fully covering it.
// Intervals that do not align to the hour grid are rounded outward:
// start is floored and a truncated end is bumped by one hour. A
// nonzero excludeID removes that reservation from capacity accounting,
// which is how re-validation of an existing reservation avoids
// counting itself.
func ScanWindow(ctx context.Context, q Querier, start, end time.Time, applicantCount int, excludeID uint64) (*Availability, error) {
	startHour := start.Truncate(time.Hour)
	endHour := end.Truncate(time.Hour)
	if !endHour.Equal(end) {
		endHour = endHour.Add(time.Hour)
	}

	limit := model.MaxApplicantCount - applicantCount

	av := &Availability{
		Available:    make([]SlotAvailability, 0),
		NotAvailable: make([]SlotAvailability, 0),
	}
	for cur := startHour; cur.Before(endHour); cur = cur.Add(time.Hour) {
		next := cur.Add(time.Hour)
		sum, err := q.SumConfirmedCovering(ctx, cur, next, excludeID)
		if err != nil {
			return nil, err
		}
		slot := SlotAvailability{
			Time:           cur.Format(hourLayout),
			AvailableCount: model.MaxApplicantCount - sum,
		}
		if sum <= limit {
			av.Available = append(av.Available, slot)
		} else {
			av.NotAvailable = append(av.NotAvailable, slot)
		}
	}
	return av, nil
}

// FormatTimeRange renders an "HH:MM" slot label as the one-hour range
// it stands for, e.g. "10:00" -> "10:00 ~ 11:00".
func FormatTimeRange(label string) string {
	t, err := time.Parse(hourLayout, label)
	if err != nil {
		return label
	}
	return label + " ~ " + t.Add(time.Hour).Format(hourLayout)
}

// AvailableTimesForDate lists the bookable hour slots of a calendar
// day. For callers with the user role, hours overlapping the caller's
// own confirmed reservations on that day are removed so the listing
// only shows slots the caller could actually book.
func (s *ReservationService) AvailableTimesForDate(ctx context.Context, actor model.Identity, day time.Time) ([]SlotRange, error) {
	dayStart := day.Truncate(24 * time.Hour)

	av, err := ScanWindow(ctx, s.store, dayStart, dayStart.Add(24*time.Hour), 0, 0)
	if err != nil {
		return nil, err
	}
	slots := av.Available

	if actor.Role == model.RoleUser {
		own, err := s.store.ConfirmedByUserOnDay(ctx, actor.UserID, dayStart)
		if err != nil {
			return nil, err
		}
		for _, r := range own {
			startHour := r.StartTime.Truncate(time.Hour)
			endHour := r.EndTime.Truncate(time.Hour)
			kept := slots[:0]
			for _, slot := range slots {
				t, err := time.Parse(hourLayout, slot.Time)
				if err != nil {
					continue
				}
				at := dayStart.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
				if !at.Before(startHour) && at.Before(endHour) {
					continue // caller already holds this hour
				}
				kept = append(kept, slot)
			}
			slots = kept
		}
	}

	out := make([]SlotRange, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotRange{
			Time:           FormatTimeRange(slot.Time),
			AvailableCount: slot.AvailableCount,
		})
	}
	return out, nil
}
