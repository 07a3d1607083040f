package router // route registration for the reservation API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-session-reservation/internal/config"
	"github.com/iliyamo/gym-session-reservation/internal/handler"
	"github.com/iliyamo/gym-session-reservation/internal/middleware"
	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// Deps carries everything the route table needs.
type Deps struct {
	Cfg          config.Config
	Auth         *handler.AuthHandler
	Sessions     *handler.SessionHandler
	Reservations *handler.ReservationHandler
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
}

// Register wires all routes onto the Echo instance.
//
// Layout:
//
//	/healthz                     liveness, open
//	/v1/auth/*                   register/login/refresh, open
//	/v1/sessions (GET)           catalog browse, open, Redis-cached
//	/v1/*                        everything else requires a JWT
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Open auth endpoints.
	auth := e.Group("/v1/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)

	// Open catalog browse, cached since the listing is read-heavy and
	// tolerates short staleness.
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	e.GET("/v1/sessions", d.Sessions.List, cache)
	e.GET("/v1/sessions/:id", d.Sessions.GetByID, cache)

	// Everything below requires a valid access token.  The limiter sits
	// after JWTAuth so buckets key on the user, not just the IP.
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(d.Cfg.JWTSecret))
	v1.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))

	v1.GET("/me", d.Auth.Me)
	v1.POST("/auth/logout", d.Auth.Logout)

	v1.POST("/reservations", d.Reservations.Create)
	v1.PATCH("/reservations/:id/cancel", d.Reservations.Cancel)
	v1.GET("/my-reservations", d.Reservations.MyReservations)
	v1.POST("/sessions/:id/waitlist", d.Reservations.JoinWaitlist)

	// Check-in is recorded by the staff running the session.
	staff := v1.Group("", middleware.RequireRole(model.RoleTrainer, model.RoleAdmin))
	staff.PATCH("/reservations/:id/attendance", d.Reservations.MarkAttendance)

	// Catalog management is admin-only.
	admin := v1.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.POST("/sessions", d.Sessions.Create)
	admin.PATCH("/sessions/:id/status", d.Sessions.UpdateStatus)
}
