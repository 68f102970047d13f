package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/medsched/confirmlink/internal/http/handlers"
	httpmw "github.com/medsched/confirmlink/internal/http/middleware"
	"github.com/medsched/confirmlink/internal/repo/postgres"
	"github.com/medsched/confirmlink/internal/service"
	"github.com/medsched/confirmlink/internal/tenant"
	"github.com/medsched/confirmlink/pkg/config"
	"github.com/medsched/confirmlink/pkg/events"
	"github.com/medsched/confirmlink/pkg/logger"
	mw "github.com/medsched/confirmlink/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect tenant stores
	ctx := context.Background()
	registry, err := tenant.New(ctx, cfg.Tenants, cfg.Database)
	if err != nil {
		logger.Error("Failed to build tenant registry", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Redis backs the per-client rate limiter
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Initialize metrics, repository, service, handlers
	reg := prometheus.NewRegistry()
	httpMetrics := mw.NewHTTPMetrics(reg)
	confirmationRepo := postgres.NewConfirmationRepo()
	confirmationService := service.NewConfirmationService(
		registry, confirmationRepo, eventBus, service.NewMetrics(reg))
	h := handlers.New(confirmationService, registry)

	rateLimiter := httpmw.NewRateLimiter(redisClient, httpmw.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		KeyFunc:  httpmw.ClientIPKeyFunc,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("confirmations"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(httpMetrics.Middleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Confirmation link routes
	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware())
		r.Get("/c/{tenant}/{token}", h.ResolveLink)
		r.Post("/api/{tenant}/status-update/{token}", h.UpdateStatus)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down confirmations service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Confirmations service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting confirmations service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Confirmations service error", "error", err)
		os.Exit(1)
	}
}
