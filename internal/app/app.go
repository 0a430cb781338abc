package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"festhub/features/activity"
	"festhub/features/event"
	"festhub/features/stats"
	"festhub/features/subscription"
	"festhub/internal/config"
	"festhub/internal/delivery"
	"festhub/internal/directory"
	"festhub/internal/middleware"
	"festhub/internal/notify"
	"festhub/internal/scheduler"
)

// Database is satisfied by *sql.DB; the interface keeps New testable with
// sqlmock while repositories below still receive the concrete handle.
type Database interface {
	PingContext(ctx context.Context) error
}

// OutcomePublisher is satisfied by *nsq.Producer.
type OutcomePublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler    http.Handler
	Events     *event.Service
	Activities *activity.Adapter

	cfg    *config.Config
	worker *scheduler.Worker
	sweep  *event.Sweep
}

func New(
	cfg *config.Config,
	db Database,
	producer OutcomePublisher,
	logger *slog.Logger,
) (*App, error) {
	sqlDB := db.(*sql.DB)

	// Store + client side of the scheduler. The client is safe to hand to
	// request handlers; only the worker below can execute anything.
	jobStore := scheduler.NewPostgresStore(sqlDB)
	jobClient := scheduler.NewClient(jobStore)

	// Feature: Subscription
	subsRepo := subscription.NewPostgresRepo(sqlDB)
	subsHandler := subscription.NewHandler(subsRepo)

	// Feature: Event
	eventRepo := event.NewPostgresRepo(sqlDB)
	eventService := event.NewService(eventRepo, jobClient)
	eventHandler := event.NewHandler(eventService)

	// Feature: Stats
	statsHandler := stats.NewHandler(subsRepo, eventRepo)

	// Feature: Activity adapter
	adapter := activity.NewAdapter(eventService, eventRepo, cfg.ReminderLead)
	activityHandler := activity.NewHandler(adapter)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /subscriptions", middleware.CorrelationID(enableCORS(subsHandler.Create)))
	mux.Handle("DELETE /subscriptions", middleware.CorrelationID(enableCORS(subsHandler.Delete)))

	mux.Handle("POST /events", middleware.CorrelationID(enableCORS(eventHandler.Create)))
	mux.Handle("GET /events", middleware.CorrelationID(enableCORS(eventHandler.List)))
	mux.Handle("GET /events/{id}", middleware.CorrelationID(enableCORS(eventHandler.Get)))
	mux.Handle("PUT /events/{id}", middleware.CorrelationID(enableCORS(eventHandler.Update)))
	mux.Handle("DELETE /events/{id}", middleware.CorrelationID(enableCORS(eventHandler.Delete)))

	mux.Handle("PUT /activities/{id}/schedule", middleware.CorrelationID(enableCORS(activityHandler.Sync)))
	mux.Handle("DELETE /activities/{id}/schedule", middleware.CorrelationID(enableCORS(activityHandler.Remove)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a := &App{
		Handler:    mux,
		Events:     eventService,
		Activities: adapter,
		cfg:        cfg,
	}

	// Worker mode: delivery pipeline, handler registry, poll loop, sweep.
	if cfg.EnableWorker {
		dirRepo := directory.NewPostgresRepo(sqlDB)
		gateway := delivery.NewHTTPGateway(cfg.PushGatewayTimeout, cfg.PushTTLSeconds)
		deliverer := delivery.NewGatewayService(gateway, cfg.PushRatePerSec)

		dispatcher := notify.NewDispatcher(subsRepo, dirRepo, deliverer, eventService, producer)
		registry := scheduler.NewRegistry()
		if err := dispatcher.Register(registry); err != nil {
			return nil, fmt.Errorf("register job handlers: %w", err)
		}

		a.worker = scheduler.NewWorker(jobStore, registry, scheduler.WorkerConfig{
			PollInterval: cfg.PollInterval,
			LockLifetime: cfg.LockLifetime,
			Concurrency:  cfg.WorkerConcurrency,
		}, logger)
		a.sweep = event.NewSweep(eventRepo, jobClient)
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.worker != nil {
		go func() {
			if err := a.worker.Run(ctx); err != nil {
				slog.Error("scheduler worker exited", "error", err)
			}
		}()
		go a.sweep.RunPeriodically(ctx, a.cfg.CleanupInterval)
	}

	if !a.cfg.EnableAPI {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
