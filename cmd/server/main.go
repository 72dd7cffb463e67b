package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/venuedesk/venue-slot-reservation/internal/config"
	"github.com/venuedesk/venue-slot-reservation/internal/database"
	"github.com/venuedesk/venue-slot-reservation/internal/handler"
	"github.com/venuedesk/venue-slot-reservation/internal/middleware"
	"github.com/venuedesk/venue-slot-reservation/internal/queue"
	"github.com/venuedesk/venue-slot-reservation/internal/repository"
	"github.com/venuedesk/venue-slot-reservation/internal/router"
	"github.com/venuedesk/venue-slot-reservation/internal/scheduling"
	queue_publisher "github.com/venuedesk/venue-slot-reservation/internal/service"
)

func main() {
	// Load .env when present; real deployments set env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories over MySQL.
	reservationRepo := repository.NewReservationRepo(db)
	waitlistRepo := repository.NewWaitlistRepo(db)
	venueRepo := repository.NewVenueRepo(db)
	statsRepo := repository.NewStatsRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	// Scheduling core.  The AMQP publisher is the notification dispatcher;
	// event delivery failures are logged by the core and never block a
	// state transition.
	clock := scheduling.UTCClock{}
	notifier := queue_publisher.NewPublisher()
	detector := scheduling.NewConflictDetector(reservationRepo)
	queueEngine := scheduling.NewQueueEngine(waitlistRepo, statsRepo, clock, cfg.TenureSaturation)
	manager := scheduling.NewLifecycleManager(reservationRepo, detector, queueEngine, notifier, clock,
		scheduling.HoldPolicy{TTL: cfg.HoldTTL, MaxExtensions: uint8(cfg.HoldMaxExtensions)})
	sweeper := scheduling.NewSweeper(reservationRepo, waitlistRepo, manager, queueEngine, notifier, clock,
		scheduling.SweeperConfig{
			Interval:      cfg.SweepInterval,
			NoticeHorizon: cfg.NoticeHorizon,
			ClaimGrace:    cfg.ClaimGrace,
		})

	// Background workers: the expiration/promotion sweep and the broker
	// consumer that turns notification events into log lines.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("sweeper stopped: %v", err)
		}
	}()
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()

	// Redis-backed operational middleware.  A nil client (Redis down or
	// unconfigured) disables both features; the middlewares pass through.
	if rdb := config.NewRedisClient(); rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	} else {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	// Handlers and routes.
	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	holdHandler := handler.NewHoldHandler(manager, reservationRepo, venueRepo)
	waitlistHandler := handler.NewWaitlistHandler(queueEngine, waitlistRepo)
	venueHandler := handler.NewVenueHandler(venueRepo)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, venueHandler)
	router.RegisterHolds(e, holdHandler, cfg.JWTSecret)
	router.RegisterWaitlist(e, waitlistHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, venueHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, hold ttl=%s, sweep every %s)", addr, cfg.Env, cfg.HoldTTL, cfg.SweepInterval)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
