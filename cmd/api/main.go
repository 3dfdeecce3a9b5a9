package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/config"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	appHTTP "github.com/cmlabs-hris/attendance-sync/internal/handler/http"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/breaker"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/zkteco"
	"github.com/cmlabs-hris/attendance-sync/internal/repository/postgresql"
	metricsService "github.com/cmlabs-hris/attendance-sync/internal/service/metrics"
	settingsService "github.com/cmlabs-hris/attendance-sync/internal/service/settings"
	syncService "github.com/cmlabs-hris/attendance-sync/internal/service/sync"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	setupLogger(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgresql.EnsureSchema(ctx, db); err != nil {
		slog.Error("Error applying schema", "error", err)
		os.Exit(1)
	}

	punchRepo := postgresql.NewPunchRepository(db)
	settingsRepo := postgresql.NewSettingsRepository(db)

	deviceClient := breaker.New(
		zkteco.NewClient(zkteco.Options{
			ConnectTimeout: cfg.Device.ConnectTimeout,
			FetchTimeout:   cfg.Device.FetchTimeout,
			InfoTimeout:    cfg.Device.InfoTimeout,
			BindAttempts:   cfg.Device.BindAttempts,
			Location:       cfg.App.Timezone,
		}),
		breaker.Settings{
			ConsecutiveFailures: cfg.Device.BreakerFailures,
			Cooldown:            cfg.Device.BreakerCooldown,
		},
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	hub := sse.NewHub()
	syncSvc := syncService.NewSyncService(deviceClient, punchRepo, settingsRepo, syncService.Config{
		DefaultPort: cfg.Device.Port,
		Location:    cfg.App.Timezone,
		Events:      hub,
	})
	metricsSvc := metricsService.NewMetricsService(punchRepo, settingsRepo, metricsService.Config{
		Policy: metrics.Policy{
			Cutoff:        cfg.Metrics.DefaultCutoff,
			GraceMinutes:  cfg.Metrics.GraceMinutes,
			CountWeekends: cfg.Metrics.CountWeekends,
			Location:      cfg.App.Timezone,
			Weights:       cfg.Metrics.Weights,
			Tiers:         cfg.Metrics.Tiers,
			Source:        metrics.PolicySourceDefault,
		},
		WindowDays: cfg.Metrics.WindowDays,
	})
	settingsSvc := settingsService.NewSettingsService(settingsRepo, settingsService.Defaults{
		CutoffTime:   cfg.Metrics.DefaultCutoff.String(),
		GraceMinutes: cfg.Metrics.GraceMinutes,
		DevicePort:   cfg.Device.Port,
	})

	scheduler := cron.NewScheduler()
	targets := make([]cron.SyncTarget, 0, len(cfg.Sync.Targets))
	for _, t := range cfg.Sync.Targets {
		targets = append(targets, cron.SyncTarget{Address: t.Address, Port: t.Port, CompanyID: t.CompanyID})
	}
	cron.NewSyncJobs(syncSvc, targets, cfg.Sync.Concurrency).RegisterJobs(scheduler, cfg.Sync.Interval)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			Env:                 cfg.App.Env,
			Version:             version,
			AllowedOrigins:      cfg.App.AllowedOrigins,
			ManualSyncPerMinute: cfg.Device.ManualSyncPerMin,
		},
		JWTService,
		appHTTP.NewAttendanceSyncHandler(syncSvc, hub),
		appHTTP.NewAttendanceMetricsHandler(metricsSvc),
		appHTTP.NewAttendanceSettingsHandler(settingsSvc),
	)

	// Device reads can take the whole fetch timeout plus connect.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Device.ConnectTimeout + cfg.Device.FetchTimeout + 15*time.Second,
	}

	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
