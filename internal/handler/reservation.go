package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/exam-slot-reservation/internal/middleware"
	"github.com/iliyamo/exam-slot-reservation/internal/model"
	"github.com/iliyamo/exam-slot-reservation/internal/queue"
	"github.com/iliyamo/exam-slot-reservation/internal/service"
)

// dateLayout is the wire format for calendar-day parameters.
const dateLayout = "2006-01-02"

// ReservationHandler exposes the reservation API. It resolves the
// acting identity from the context (JWTAuth runs first), delegates to
// the reservation service and maps domain errors to HTTP responses.
type ReservationHandler struct {
	Svc *service.ReservationService
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// ----- DTOs -----

type createReservationReq struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ApplicantCount int       `json:"applicant_count"`
}

type updateReservationReq struct {
	ID             uint64                  `json:"id"`
	StartTime      *time.Time              `json:"start_time"`
	EndTime        *time.Time              `json:"end_time"`
	ApplicantCount *int                    `json:"applicant_count"`
	State          *model.ReservationState `json:"state"`
}

type deleteReservationReq struct {
	ID uint64 `json:"id"`
}

type confirmReservationReq struct {
	ReservationIDs []uint64 `json:"reservation_ids"`
}

// writeServiceError maps domain errors onto HTTP responses. Validation
// failures carry their message verbatim; anything unrecognized is a
// 500 without internals leaking to the client.
func writeServiceError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Msg})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// AvailableTimes handles GET /v1/reservations/available?date=YYYY-MM-DD.
// It lists the bookable hour slots of the given day; users do not see
// hours already covered by their own confirmed reservations.
func (h *ReservationHandler) AvailableTimes(c echo.Context) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	day, err := time.ParseInLocation(dateLayout, c.QueryParam("date"), time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	slots, err := h.Svc.AvailableTimesForDate(c.Request().Context(), actor, day)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": slots})
}

// List handles GET /v1/reservations?date=&size=&page=. Non-admins see
// only their own reservations; size and page come as a pair.
func (h *ReservationHandler) List(c echo.Context) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var q service.ListQuery
	if d := c.QueryParam("date"); d != "" {
		day, err := time.ParseInLocation(dateLayout, d, time.UTC)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
		}
		q.Date = &day
	}
	if s := c.QueryParam("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid size"})
		}
		q.Size = &n
	}
	if p := c.QueryParam("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
		}
		q.Page = &n
	}

	items, err := h.Svc.List(c.Request().Context(), actor, q)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create handles POST /v1/reservations. Only the user role books; the
// reservation starts out pending.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time and end_time are required"})
	}

	r, err := h.Svc.Create(c.Request().Context(), actor, service.CreateInput{
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		ApplicantCount: req.ApplicantCount,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": r})
}

// Update handles PUT /v1/reservations. The id travels in the body,
// mirroring delete; field changes are re-validated by the service.
func (h *ReservationHandler) Update(c echo.Context) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id is required"})
	}

	in := service.UpdateInput{ApplicantCount: req.ApplicantCount, State: req.State}
	if req.StartTime != nil {
		t := req.StartTime.UTC()
		in.StartTime = &t
	}
	if req.EndTime != nil {
		t := req.EndTime.UTC()
		in.EndTime = &t
	}

	r, err := h.Svc.Update(c.Request().Context(), actor, req.ID, in)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": r})
}

// Cancel handles DELETE /v1/reservations. Deleting is the canceled
// transition; canceled reservations reject any further mutation.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req deleteReservationReq
	if err := c.Bind(&req); err != nil || req.ID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id is required"})
	}

	if err := h.Svc.Cancel(c.Request().Context(), actor, req.ID); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"state": "success"})
}

// BulkConfirm handles PUT /v1/reservations/confirm (admin only). Each
// id is confirmed independently; failures come back per id and never
// abort the batch. Confirmation events are published best-effort for
// the ids that succeeded.
func (h *ReservationHandler) BulkConfirm(c echo.Context) error {
	actor, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req confirmReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.ReservationIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation_ids is required"})
	}

	confirmed, failures, err := h.Svc.BulkConfirm(c.Request().Context(), actor, req.ReservationIDs)
	if err != nil {
		return writeServiceError(c, err)
	}

	for _, r := range confirmed {
		ev := queue.ReservationConfirmedEvent{
			ReservationID:  r.ID,
			UserID:         r.UserID,
			StartTime:      r.StartTime.Format(time.RFC3339),
			EndTime:        r.EndTime.Format(time.RFC3339),
			ApplicantCount: r.ApplicantCount,
			ConfirmedAt:    r.UpdatedAt.Format(time.RFC3339),
		}
		if err := queue.PublishReservationConfirmed(c.Request().Context(), ev); err != nil {
			log.Printf("publish reservation.confirmed failed for id=%d: %v", r.ID, err)
		}
	}

	if len(failures) > 0 {
		return c.JSON(http.StatusOK, echo.Map{"failed": failures})
	}
	return c.JSON(http.StatusOK, echo.Map{"state": "success"})
}
