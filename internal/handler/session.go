package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-session-reservation/internal/model"
	"github.com/iliyamo/gym-session-reservation/internal/repository"
)

// SessionHandler serves the class catalog: create, browse, lookup and
// lifecycle transitions.  Booking traffic never goes through here.
type SessionHandler struct {
	Sessions *repository.SessionRepo
}

func NewSessionHandler(s *repository.SessionRepo) *SessionHandler {
	return &SessionHandler{Sessions: s}
}

type createSessionReq struct {
	Title     string    `json:"title"`
	TrainerID *uint64   `json:"trainer_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Capacity  int       `json:"capacity"`
}

type updateSessionStatusReq struct {
	Status string `json:"status"`
}

// Create registers a new session (admin only, enforced by the router).
func (h *SessionHandler) Create(c echo.Context) error {
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be at least 1"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := &model.Session{
		Title:     req.Title,
		TrainerID: req.TrainerID,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.EndsAt.UTC(),
		Capacity:  req.Capacity,
	}
	if err := h.Sessions.Create(ctx, s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusCreated, s)
}

// List returns the session catalog ordered by start time, paginated
// with skip/limit query parameters.
func (h *SessionHandler) List(c echo.Context) error {
	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.Sessions.List(ctx, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list sessions failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// GetByID returns one session.
func (h *SessionHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load session failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// UpdateStatus transitions a session between scheduled, cancelled and
// completed (admin only, enforced by the router).
func (h *SessionHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req updateSessionStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := model.SessionStatus(req.Status)
	if !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.UpdateStatus(ctx, id, status); err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update session failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": status})
}
