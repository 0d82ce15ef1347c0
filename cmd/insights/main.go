package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/api/aggregations"
	"github.com/johnwards/insights/internal/api/dashboards"
	"github.com/johnwards/insights/internal/api/objects"
	"github.com/johnwards/insights/internal/api/reports"
	"github.com/johnwards/insights/internal/api/schedules"
	"github.com/johnwards/insights/internal/config"
	"github.com/johnwards/insights/internal/dashboard"
	"github.com/johnwards/insights/internal/database"
	"github.com/johnwards/insights/internal/definitions"
	"github.com/johnwards/insights/internal/notify"
	"github.com/johnwards/insights/internal/report"
	"github.com/johnwards/insights/internal/schedule"
	"github.com/johnwards/insights/internal/seed"
	"github.com/johnwards/insights/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.OpenAndMigrate(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := seed.Seed(ctx, db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	s := store.New(db)
	engine := aggregate.New(aggregate.WithMaxStages(cfg.MaxStages))
	reportMgr := report.NewManager(engine)
	dashboardMgr := dashboard.NewManager(engine, reportMgr,
		dashboard.WithFailurePolicy(cfg.DashboardFailure),
		dashboard.WithConcurrency(cfg.WidgetConcurrency),
	)
	scheduler := schedule.New(reportMgr,
		schedule.WithLocation(loc),
		schedule.WithFailurePolicy(cfg.ScheduleFailure),
		schedule.WithRunLog(s.Runs),
	)

	notifier := notify.Multi{notify.Log{}}
	if cfg.RedisAddr != "" {
		client, err := notify.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		notifier = append(notifier, notify.NewRedis(client, cfg.RedisChannel))
		slog.Info("redis delivery enabled", "channel", cfg.RedisChannel)
	}

	if cfg.DefinitionsPath != "" {
		defs, err := definitions.Load(cfg.DefinitionsPath)
		if err != nil {
			return err
		}
		if err := definitions.Apply(ctx, defs, definitions.Targets{
			Reports:    reportMgr,
			Dashboards: dashboardMgr,
			Schedules:  scheduler,
			Objects:    s.Objects,
		}); err != nil {
			return fmt.Errorf("apply definitions: %w", err)
		}
	}

	mux := http.NewServeMux()

	aggregations.RegisterRoutes(mux, engine, s.Objects)
	reports.RegisterRoutes(mux, reportMgr, s.Objects)
	dashboards.RegisterRoutes(mux, dashboardMgr, s.Objects)
	schedules.RegisterRoutes(mux, scheduler, s.Objects, notifier, s.Runs)
	objects.RegisterRoutes(mux, s.Objects)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			api.WriteDomainError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Catch-all: return 404 in the API error format.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		corrID := api.CorrelationID(r.Context())
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			corrID,
		))
	})

	handler := api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(cfg.AuthToken),
		api.JSONContentType(),
		api.Logging(),
		api.Metrics(),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var runner *schedule.Runner
	if cfg.Scheduler {
		runner, err = schedule.NewRunner(scheduler, s.Objects, notifier)
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		runner.Start()
		slog.Info("scheduler started", "timezone", loc.String(), "policy", cfg.ScheduleFailure.String())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down server")
		if runner != nil {
			<-runner.Stop().Done()
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting insights server", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}
