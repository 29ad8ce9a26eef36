package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/pitchdreamers/pitch-booking/internal/config"
	"github.com/pitchdreamers/pitch-booking/internal/database"
	"github.com/pitchdreamers/pitch-booking/internal/handler"
	"github.com/pitchdreamers/pitch-booking/internal/jobs"
	"github.com/pitchdreamers/pitch-booking/internal/logger"
	"github.com/pitchdreamers/pitch-booking/internal/metrics"
	"github.com/pitchdreamers/pitch-booking/internal/middleware"
	"github.com/pitchdreamers/pitch-booking/internal/queue"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
	"github.com/pitchdreamers/pitch-booking/internal/router"
	"github.com/pitchdreamers/pitch-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)

	db, err := database.Open(cfg.Database)
	if err != nil {
		lg.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			lg.Fatal("migrations failed", zap.Error(err))
		}
	}

	m := metrics.New()
	if err := m.RegisterDB(db, cfg.Database.Name); err != nil {
		lg.Warn("db stats collector not registered", zap.Error(err))
	}

	// Redis is optional: without it the blacklist lives in memory and the
	// rate limiter and response cache pass through.
	rdb := config.NewRedisClient(cfg.Redis)
	var blacklist repository.TokenBlacklist
	if rdb != nil {
		defer rdb.Close()
		blacklist = repository.NewRedisBlacklist(rdb, "")
	} else {
		lg.Warn("redis unreachable, using in-memory token blacklist", zap.String("addr", cfg.Redis.Addr))
		blacklist = repository.NewMemoryBlacklist()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher
	if cfg.AMQP.URL != "" {
		events = queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if cfg.AMQP.Consume {
			consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.LogFile, lg)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					lg.Error("reservation consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	fields := repository.NewFieldRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)

	svc := service.NewReservationService(db, reservations, fields, users, service.ReservationServiceOptions{
		AcquireTimeout: cfg.Database.AcquireTimeout,
		Events:         events,
		Metrics:        m,
		Logger:         lg,
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORS.AllowedOrigins}))
	e.Use(logger.EchoMiddleware(lg))
	e.Use(middleware.HTTPMetrics(m))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, m, lg))

	auth := middleware.JWTAuth(cfg.JWT.Secret, blacklist, lg)
	cache := middleware.NewRedisCache(cfg.Cache, rdb, m, lg)

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb}, m)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, blacklist), auth)
	router.RegisterAPI(e, router.Handlers{
		Fields:       &handler.FieldHandler{Fields: fields, Allocator: svc},
		Users:        &handler.UserHandler{Users: users, BcryptCost: cfg.BcryptCost},
		Reservations: &handler.ReservationHandler{Reservations: reservations, Allocator: svc},
		Payments:     &handler.PaymentHandler{Payments: payments},
	}, auth, cache)

	if cfg.Sweeper.Enabled {
		c, err := jobs.Schedule(cfg.Sweeper.Spec, jobs.NewSweeper(svc, lg))
		if err != nil {
			lg.Fatal("invalid sweeper schedule", zap.String("spec", cfg.Sweeper.Spec), zap.Error(err))
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
