package main // entry point for the reservation API server

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-session-reservation/internal/config"
	"github.com/iliyamo/gym-session-reservation/internal/database"
	"github.com/iliyamo/gym-session-reservation/internal/engine"
	"github.com/iliyamo/gym-session-reservation/internal/handler"
	"github.com/iliyamo/gym-session-reservation/internal/queue"
	"github.com/iliyamo/gym-session-reservation/internal/repository"
	"github.com/iliyamo/gym-session-reservation/internal/router"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response cache disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	reservations := repository.NewReservationRepo(db)

	eng := engine.New(repository.NewBookingStore(db))

	// Background consumer writes notification events to logs/reservation.log.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.Register(e, router.Deps{
		Cfg:          cfg,
		Auth:         handler.NewAuthHandler(cfg, users, tokens),
		Sessions:     handler.NewSessionHandler(sessions),
		Reservations: handler.NewReservationHandler(eng, sessions, reservations),
		Redis:        rdb,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
