package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-session-reservation/internal/engine"
	"github.com/iliyamo/gym-session-reservation/internal/middleware"
	"github.com/iliyamo/gym-session-reservation/internal/model"
	"github.com/iliyamo/gym-session-reservation/internal/queue"
	"github.com/iliyamo/gym-session-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/gym-session-reservation/internal/service"
)

// ReservationHandler exposes the admission engine over HTTP: booking,
// cancellation, waitlist joins and the member's own reservation list.
type ReservationHandler struct {
	Engine       *engine.Engine
	Sessions     *repository.SessionRepo
	Reservations *repository.ReservationRepo
}

func NewReservationHandler(e *engine.Engine, s *repository.SessionRepo, r *repository.ReservationRepo) *ReservationHandler {
	return &ReservationHandler{Engine: e, Sessions: s, Reservations: r}
}

type createReservationReq struct {
	SessionID uint64 `json:"session_id"`
	// AutoWaitlist defaults to true: a full session queues the member
	// instead of rejecting them.  Clients that want a hard failure send
	// false explicitly.
	AutoWaitlist *bool `json:"auto_waitlist"`
}

// Create attempts to book the authenticated member into a session.
// Responds 201 with the reservation when admitted, 202 with the
// assigned position when waitlisted.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil || req.SessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}
	allowWaitlist := req.AutoWaitlist == nil || *req.AutoWaitlist

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	uid := middleware.UserID(c)
	out, err := h.Engine.AttemptBooking(ctx, req.SessionID, uid, allowWaitlist)
	if err != nil {
		return h.engineError(c, err)
	}

	if out.Waitlisted {
		return c.JSON(http.StatusAccepted, echo.Map{
			"waitlisted": true,
			"session_id": req.SessionID,
			"position":   out.Position,
		})
	}

	h.publishEvent(queue.EventBooked, out.Reservation)
	return c.JSON(http.StatusCreated, out.Reservation)
}

// Cancel marks a reservation cancelled and reports whether a waitlisted
// member was promoted into the freed spot.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	uid := middleware.UserID(c)
	isAdmin := middleware.Role(c) == model.RoleAdmin
	out, err := h.Engine.CancelBooking(ctx, id, uid, isAdmin)
	if err != nil {
		return h.engineError(c, err)
	}

	h.publishEvent(queue.EventCancelled, out.Reservation)
	resp := echo.Map{"reservation": out.Reservation}
	if out.Promoted != nil {
		h.publishEvent(queue.EventPromoted, out.Promoted.Reservation)
		resp["promoted"] = echo.Map{
			"user_id":        out.Promoted.UserID,
			"reservation_id": out.Promoted.Reservation.ID,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// JoinWaitlist adds the authenticated member to a session's waitlist
// without attempting a booking first.
func (h *ReservationHandler) JoinWaitlist(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	pos, err := h.Engine.Enqueue(ctx, sessionID, middleware.UserID(c))
	if err != nil {
		return h.engineError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"waitlisted": true,
		"session_id": sessionID,
		"position":   pos,
	})
}

type attendanceReq struct {
	Status string `json:"status"` // attended | no_show
}

// MarkAttendance records check-in results after a session runs.
// Restricted to trainers and admins by the router.
func (h *ReservationHandler) MarkAttendance(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req attendanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := model.ReservationStatus(req.Status)
	if status != model.ReservationAttended && status != model.ReservationNoShow {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be attended or no_show"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Reservations.MarkAttendance(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotTransitionable) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not in the booked state"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update reservation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": status})
}

// MyReservations lists the authenticated member's reservations, newest
// first, each with its session inlined.
func (h *ReservationHandler) MyReservations(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Reservations.ListByUser(ctx, middleware.UserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// engineError maps admission errors onto HTTP statuses.  Conflicting
// state (full, overlap, duplicate waitlist, not cancellable) is 409 so
// clients can distinguish it from bad input.
func (h *ReservationHandler) engineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, engine.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, engine.ErrSessionUnavailable):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session is not open for booking"})
	case errors.Is(err, engine.ErrSessionFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session is full"})
	case errors.Is(err, engine.ErrOverlapConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "overlapping booking exists"})
	case errors.Is(err, engine.ErrAlreadyWaitlisted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already on the waitlist"})
	case errors.Is(err, engine.ErrNotCancellable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not cancellable"})
	case errors.Is(err, engine.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking operation failed"})
	}
}

// publishEvent pushes a notification to the broker without blocking the
// request.  Failures are logged by the publisher and dropped; booking
// state is already committed by the time an event is emitted.
func (h *ReservationHandler) publishEvent(kind string, res *model.Reservation) {
	if res == nil {
		return
	}
	ev := queue.ReservationEvent{
		Kind:          kind,
		ReservationID: res.ID,
		UserID:        res.UserID,
		SessionID:     res.SessionID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if s, err := h.Sessions.GetByID(ctx, ev.SessionID); err == nil {
			ev.SessionTitle = s.Title
			ev.StartsAt = s.StartsAt.UTC().Format(time.RFC3339)
			ev.EndsAt = s.EndsAt.UTC().Format(time.RFC3339)
		}
		_ = queue_publisher.PublishReservationEvent(ctx, ev)
	}()
}
