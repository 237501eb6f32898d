package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService() (*ReservationService, *memStore) {
	st := newMemStore()
	svc := NewReservationService(st)
	svc.now = func() time.Time { return testNow }
	return svc, st
}

func userIdentity(id uint64) model.Identity {
	return model.Identity{UserID: id, Role: model.RoleUser}
}

func adminIdentity(id uint64) model.Identity {
	return model.Identity{UserID: id, Role: model.RoleAdmin}
}

func windowAt(startHour, endHour int) (time.Time, time.Time) {
	return testDay.Add(time.Duration(startHour) * time.Hour), testDay.Add(time.Duration(endHour) * time.Hour)
}

func TestCreate(t *testing.T) {
	svc, st := newTestService()
	start, end := windowAt(10, 12)

	r, err := svc.Create(context.Background(), userIdentity(5), CreateInput{
		StartTime: start, EndTime: end, ApplicantCount: 30,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if r.ID == 0 {
		t.Error("Create did not assign an id")
	}
	if r.State != model.StatePending {
		t.Errorf("State = %q, want %q", r.State, model.StatePending)
	}
	if r.UserID != 5 {
		t.Errorf("UserID = %d, want 5", r.UserID)
	}
	if !r.CreatedAt.Equal(testNow) || !r.UpdatedAt.Equal(testNow) {
		t.Errorf("timestamps = %v/%v, want %v", r.CreatedAt, r.UpdatedAt, testNow)
	}

	stored, err := st.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetByID after create: %v", err)
	}
	if stored.ApplicantCount != 30 {
		t.Errorf("stored ApplicantCount = %d, want 30", stored.ApplicantCount)
	}
}

func TestCreateByAdminForbidden(t *testing.T) {
	svc, _ := newTestService()
	start, end := windowAt(10, 12)

	_, err := svc.Create(context.Background(), adminIdentity(1), CreateInput{
		StartTime: start, EndTime: end, ApplicantCount: 1,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Create by admin: err = %v, want ErrForbidden", err)
	}
}

func TestCreateFieldValidation(t *testing.T) {
	svc, _ := newTestService()
	start, end := windowAt(10, 12)

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"reversed interval", CreateInput{StartTime: end, EndTime: start, ApplicantCount: 1}},
		{"zero count", CreateInput{StartTime: start, EndTime: end, ApplicantCount: 0}},
		{"count over ceiling", CreateInput{StartTime: start, EndTime: end, ApplicantCount: model.MaxApplicantCount + 1}},
	}
	for _, c := range cases {
		_, err := svc.Create(context.Background(), userIdentity(5), c.in)
		if !IsValidation(err) {
			t.Errorf("%s: err = %v, want validation error", c.name, err)
		}
	}
}

func TestCreateLeadTime(t *testing.T) {
	svc, _ := newTestService()

	// Exactly at the 3-day boundary books; one second under fails.
	start := testNow.Add(model.MinLeadTime)
	if _, err := svc.Create(context.Background(), userIdentity(5), CreateInput{
		StartTime: start, EndTime: start.Add(time.Hour), ApplicantCount: 1,
	}); err != nil {
		t.Errorf("Create at lead-time boundary: err = %v, want nil", err)
	}

	start = testNow.Add(model.MinLeadTime - time.Second)
	_, err := svc.Create(context.Background(), userIdentity(5), CreateInput{
		StartTime: start, EndTime: start.Add(time.Hour), ApplicantCount: 1,
	})
	if !IsValidation(err) {
		t.Fatalf("Create inside lead time: err = %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), "3 days") {
		t.Errorf("lead-time error = %q, want mention of 3 days", err.Error())
	}
}

func TestCreateCapacityExceeded(t *testing.T) {
	svc, st := newTestService()
	st.seed(confirmedAt(7, 10, 11, model.MaxApplicantCount-10))
	start, end := windowAt(10, 12)

	_, err := svc.Create(context.Background(), userIdentity(5), CreateInput{
		StartTime: start, EndTime: end, ApplicantCount: 20,
	})
	if !IsValidation(err) {
		t.Fatalf("Create over capacity: err = %v, want validation error", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "applicant capacity exceeded") {
		t.Errorf("error = %q, want capacity message", msg)
	}
	// The 10:00 slot still has 10 seats and the 11:00 slot is free, so
	// both appear in the alternatives list.
	if !strings.Contains(msg, "10:00 ~ 11:00 10") {
		t.Errorf("error = %q, want alternative %q", msg, "10:00 ~ 11:00 10")
	}
	if !strings.Contains(msg, "11:00 ~ 12:00 50000") {
		t.Errorf("error = %q, want alternative %q", msg, "11:00 ~ 12:00 50000")
	}

	// Nothing persisted.
	items, _ := st.List(context.Background(), ListFilter{UserID: 5})
	if len(items) != 0 {
		t.Errorf("reservations persisted after failed create: %d", len(items))
	}
}

func TestCreateSelfOverlapConflict(t *testing.T) {
	svc, st := newTestService()
	st.seed(confirmedAt(5, 10, 12, 10))

	start, end := windowAt(11, 13)
	_, err := svc.Create(context.Background(), userIdentity(5), CreateInput{
		StartTime: start, EndTime: end, ApplicantCount: 1,
	})
	if !IsValidation(err) {
		t.Fatalf("overlapping create: err = %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), "overlapping") {
		t.Errorf("error = %q, want overlap message", err.Error())
	}

	// Touching intervals do not overlap: booking right after the held
	// window succeeds.
	start, end = windowAt(12, 13)
	if _, err := svc.Create(context.Background(), userIdentity(5), CreateInput{
		StartTime: start, EndTime: end, ApplicantCount: 1,
	}); err != nil {
		t.Errorf("adjacent create: err = %v, want nil", err)
	}

	// A different user may overlap freely while capacity remains.
	start, end = windowAt(11, 13)
	if _, err := svc.Create(context.Background(), userIdentity(9), CreateInput{
		StartTime: start, EndTime: end, ApplicantCount: 1,
	}); err != nil {
		t.Errorf("other user's overlapping create: err = %v, want nil", err)
	}
}

func TestUpdateFields(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(12 * time.Hour),
		ApplicantCount: 10, State: model.StatePending,
	})

	count := 25
	r, err := svc.Update(context.Background(), userIdentity(5), id, UpdateInput{ApplicantCount: &count})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if r.ApplicantCount != 25 {
		t.Errorf("ApplicantCount = %d, want 25", r.ApplicantCount)
	}
	if r.State != model.StatePending {
		t.Errorf("State = %q, want %q", r.State, model.StatePending)
	}
	if !r.UpdatedAt.Equal(testNow) {
		t.Errorf("UpdatedAt = %v, want %v", r.UpdatedAt, testNow)
	}

	// Start without end is rejected before touching the store.
	start := testDay.Add(14 * time.Hour)
	if _, err := svc.Update(context.Background(), userIdentity(5), id, UpdateInput{StartTime: &start}); !IsValidation(err) {
		t.Errorf("start without end: err = %v, want validation error", err)
	}

	end := testDay.Add(15 * time.Hour)
	r, err = svc.Update(context.Background(), userIdentity(5), id, UpdateInput{StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("Update window returned error: %v", err)
	}
	if !r.StartTime.Equal(start) || !r.EndTime.Equal(end) {
		t.Errorf("window = %v..%v, want %v..%v", r.StartTime, r.EndTime, start, end)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newTestService()
	count := 1
	_, err := svc.Update(context.Background(), userIdentity(5), 999, UpdateInput{ApplicantCount: &count})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateOwnerOnly(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StatePending,
	})

	count := 20
	_, err := svc.Update(context.Background(), userIdentity(9), id, UpdateInput{ApplicantCount: &count})
	if !IsValidation(err) {
		t.Fatalf("update of foreign reservation: err = %v, want validation error", err)
	}
	if err.Error() != "invalid reservation" {
		t.Errorf("error = %q, want %q", err.Error(), "invalid reservation")
	}

	// Admins are not bound to ownership.
	if _, err := svc.Update(context.Background(), adminIdentity(1), id, UpdateInput{ApplicantCount: &count}); err != nil {
		t.Errorf("admin update of foreign reservation: err = %v, want nil", err)
	}
}

func TestUpdateCanceledIsTerminal(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StateCanceled,
	})

	count := 20
	for _, actor := range []model.Identity{userIdentity(5), adminIdentity(1)} {
		_, err := svc.Update(context.Background(), actor, id, UpdateInput{ApplicantCount: &count})
		if !IsValidation(err) || err.Error() != "reservation has been canceled" {
			t.Errorf("%s update of canceled reservation: err = %v, want terminal-state error", actor.Role, err)
		}
	}
}

func TestUpdateConfirmedRequiresAdmin(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StateConfirmed,
	})

	count := 20
	_, err := svc.Update(context.Background(), userIdentity(5), id, UpdateInput{ApplicantCount: &count})
	if !IsValidation(err) {
		t.Fatalf("owner update of confirmed reservation: err = %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), "administrator") {
		t.Errorf("error = %q, want admin-only message", err.Error())
	}

	r, err := svc.Update(context.Background(), adminIdentity(1), id, UpdateInput{ApplicantCount: &count})
	if err != nil {
		t.Fatalf("admin update of confirmed reservation: %v", err)
	}
	if r.ApplicantCount != 20 {
		t.Errorf("ApplicantCount = %d, want 20", r.ApplicantCount)
	}
	if r.State != model.StateConfirmed {
		t.Errorf("State = %q, want %q", r.State, model.StateConfirmed)
	}
}

func TestUpdateConfirmRequestByOwnerIgnored(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StatePending,
	})

	// A non-admin asking for confirmed succeeds but the state request
	// is dropped on the floor.
	state := model.StateConfirmed
	r, err := svc.Update(context.Background(), userIdentity(5), id, UpdateInput{State: &state})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if r.State != model.StatePending {
		t.Errorf("State = %q, want %q (confirm by owner must be ignored)", r.State, model.StatePending)
	}

	bogus := model.ReservationState("archived")
	if _, err := svc.Update(context.Background(), userIdentity(5), id, UpdateInput{State: &bogus}); !IsValidation(err) {
		t.Errorf("unknown state: err = %v, want validation error", err)
	}
}

func TestUpdateRevalidatesExcludingSelf(t *testing.T) {
	svc, st := newTestService()
	// The reservation alone fills its hour; re-validation must exclude
	// it or every no-op update would fail.
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: model.MaxApplicantCount, State: model.StateConfirmed,
	})

	count := model.MaxApplicantCount
	if _, err := svc.Update(context.Background(), adminIdentity(1), id, UpdateInput{ApplicantCount: &count}); err != nil {
		t.Errorf("no-op update: err = %v, want nil", err)
	}

	// A second full reservation in the same hour blocks it.
	st.seed(confirmedAt(9, 10, 11, 1))
	_, err := svc.Update(context.Background(), adminIdentity(1), id, UpdateInput{ApplicantCount: &count})
	if !IsValidation(err) {
		t.Errorf("update into full hour: err = %v, want validation error", err)
	}
}

func TestCancel(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StatePending,
	})

	if err := svc.Cancel(context.Background(), userIdentity(5), id); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	r, _ := st.GetByID(context.Background(), id)
	if r.State != model.StateCanceled {
		t.Errorf("State = %q, want %q", r.State, model.StateCanceled)
	}

	// Canceling twice fails: canceled is terminal.
	if err := svc.Cancel(context.Background(), userIdentity(5), id); !IsValidation(err) {
		t.Errorf("second cancel: err = %v, want validation error", err)
	}
}

func TestCancelConfirmedByOwnerFails(t *testing.T) {
	svc, st := newTestService()
	id := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StateConfirmed,
	})

	if err := svc.Cancel(context.Background(), userIdentity(5), id); !IsValidation(err) {
		t.Errorf("owner cancel of confirmed: err = %v, want validation error", err)
	}
	if err := svc.Cancel(context.Background(), adminIdentity(1), id); err != nil {
		t.Errorf("admin cancel of confirmed: err = %v, want nil", err)
	}
}

func TestBulkConfirm(t *testing.T) {
	svc, st := newTestService()
	okID := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour),
		ApplicantCount: 10, State: model.StatePending,
	})
	canceledID := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(12 * time.Hour), EndTime: testDay.Add(13 * time.Hour),
		ApplicantCount: 10, State: model.StateCanceled,
	})

	confirmed, failures, err := svc.BulkConfirm(context.Background(), adminIdentity(1), []uint64{okID, canceledID, 999})
	if err != nil {
		t.Fatalf("BulkConfirm returned error: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0].ID != okID {
		t.Fatalf("confirmed = %v, want single id %d", confirmed, okID)
	}
	if confirmed[0].State != model.StateConfirmed {
		t.Errorf("confirmed[0].State = %q, want %q", confirmed[0].State, model.StateConfirmed)
	}
	if len(failures) != 2 {
		t.Fatalf("len(failures) = %d, want 2", len(failures))
	}
	if failures[0].ID != canceledID || failures[0].Error != "reservation has been canceled" {
		t.Errorf("failures[0] = %+v, want canceled error for id %d", failures[0], canceledID)
	}
	if failures[1].ID != 999 || failures[1].Error != ErrNotFound.Error() {
		t.Errorf("failures[1] = %+v, want not-found error for id 999", failures[1])
	}

	// The successful id committed despite the failing ones.
	r, _ := st.GetByID(context.Background(), okID)
	if r.State != model.StateConfirmed {
		t.Errorf("stored state = %q, want %q", r.State, model.StateConfirmed)
	}
}

func TestBulkConfirmRejectsOverlappingPending(t *testing.T) {
	svc, st := newTestService()
	okID := st.seed(model.Reservation{
		UserID: 5, StartTime: testDay.Add(14 * time.Hour), EndTime: testDay.Add(15 * time.Hour),
		ApplicantCount: 10, State: model.StatePending,
	})
	// User 5 already holds 10:00-11:00 confirmed; the pending
	// 10:30-11:30 collides with it once the confirm transition
	// re-validates the window.
	st.seed(confirmedAt(5, 10, 11, 10))
	overlapID := st.seed(model.Reservation{
		UserID:    5,
		StartTime: testDay.Add(10*time.Hour + 30*time.Minute),
		EndTime:   testDay.Add(11*time.Hour + 30*time.Minute),
		ApplicantCount: 10, State: model.StatePending,
	})

	confirmed, failures, err := svc.BulkConfirm(context.Background(), adminIdentity(1), []uint64{okID, overlapID})
	if err != nil {
		t.Fatalf("BulkConfirm returned error: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0].ID != okID {
		t.Fatalf("confirmed = %v, want single id %d", confirmed, okID)
	}
	if len(failures) != 1 {
		t.Fatalf("len(failures) = %d, want 1", len(failures))
	}
	if failures[0].ID != overlapID {
		t.Errorf("failures[0].ID = %d, want %d", failures[0].ID, overlapID)
	}
	if !strings.Contains(failures[0].Error, "overlapping") {
		t.Errorf("failures[0].Error = %q, want overlap message", failures[0].Error)
	}

	// The rejected reservation stays pending.
	r, _ := st.GetByID(context.Background(), overlapID)
	if r.State != model.StatePending {
		t.Errorf("rejected reservation state = %q, want %q", r.State, model.StatePending)
	}
}

func TestBulkConfirmNonAdmin(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.BulkConfirm(context.Background(), userIdentity(5), []uint64{1})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestListRoleScoping(t *testing.T) {
	svc, st := newTestService()
	st.seed(model.Reservation{UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour), ApplicantCount: 1, State: model.StatePending})
	st.seed(model.Reservation{UserID: 9, StartTime: testDay.Add(12 * time.Hour), EndTime: testDay.Add(13 * time.Hour), ApplicantCount: 1, State: model.StatePending})

	items, err := svc.List(context.Background(), userIdentity(5), ListQuery{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 || items[0].UserID != 5 {
		t.Errorf("user listing = %v, want only user 5's reservation", items)
	}

	items, err = svc.List(context.Background(), adminIdentity(1), ListQuery{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("admin listing len = %d, want 2", len(items))
	}
}

func TestListDateFilter(t *testing.T) {
	svc, st := newTestService()
	st.seed(model.Reservation{UserID: 5, StartTime: testDay.Add(10 * time.Hour), EndTime: testDay.Add(11 * time.Hour), ApplicantCount: 1, State: model.StatePending})
	// Ends exactly at next midnight: excluded by the half-open day window.
	st.seed(model.Reservation{UserID: 5, StartTime: testDay.Add(23 * time.Hour), EndTime: testDay.Add(24 * time.Hour), ApplicantCount: 1, State: model.StatePending})
	st.seed(model.Reservation{UserID: 5, StartTime: testDay.Add(34 * time.Hour), EndTime: testDay.Add(35 * time.Hour), ApplicantCount: 1, State: model.StatePending})

	day := testDay
	items, err := svc.List(context.Background(), userIdentity(5), ListQuery{Date: &day})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if !items[0].StartTime.Equal(testDay.Add(10 * time.Hour)) {
		t.Errorf("items[0].StartTime = %v, want %v", items[0].StartTime, testDay.Add(10*time.Hour))
	}
}

func TestListPagination(t *testing.T) {
	svc, st := newTestService()
	for i := 0; i < 25; i++ {
		st.seed(model.Reservation{
			UserID:    5,
			StartTime: testDay.Add(time.Duration(i) * time.Hour),
			EndTime:   testDay.Add(time.Duration(i+1) * time.Hour),
			ApplicantCount: 1, State: model.StatePending,
		})
	}

	size, page := 10, 2
	items, err := svc.List(context.Background(), userIdentity(5), ListQuery{Size: &size, Page: &page})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 10 {
		t.Fatalf("len(items) = %d, want 10", len(items))
	}
	if !items[0].StartTime.Equal(testDay.Add(10 * time.Hour)) {
		t.Errorf("page 2 starts at %v, want %v", items[0].StartTime, testDay.Add(10*time.Hour))
	}

	page = 3
	items, err = svc.List(context.Background(), userIdentity(5), ListQuery{Size: &size, Page: &page})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("last page len = %d, want 5", len(items))
	}

	// Size without page and non-positive values are rejected.
	if _, err := svc.List(context.Background(), userIdentity(5), ListQuery{Size: &size}); !IsValidation(err) {
		t.Errorf("size without page: err = %v, want validation error", err)
	}
	zero := 0
	if _, err := svc.List(context.Background(), userIdentity(5), ListQuery{Size: &zero, Page: &page}); !IsValidation(err) {
		t.Errorf("zero size: err = %v, want validation error", err)
	}
}
