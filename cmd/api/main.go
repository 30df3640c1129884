package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/anilist"
	"github.com/gabriel/anime-watchlist/backend/internal/config"
	"github.com/gabriel/anime-watchlist/backend/internal/database"
	"github.com/gabriel/anime-watchlist/backend/internal/filter"
	apihttp "github.com/gabriel/anime-watchlist/backend/internal/http"
	"github.com/gabriel/anime-watchlist/backend/internal/repository"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
	"github.com/gabriel/anime-watchlist/backend/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open sqlite", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.ApplyMigrations(db, cfg.MigrationsPath); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	if cfg.SeedDefaultData {
		if err := database.SeedDefaults(db); err != nil {
			slog.Error("failed to seed defaults", "error", err)
			os.Exit(1)
		}
	}

	policy, err := filter.LoadPolicy(cfg.EligibilityPolicyPath)
	if err != nil {
		slog.Error("failed to load eligibility policy", "path", cfg.EligibilityPolicyPath, "error", err)
		os.Exit(1)
	}

	client := anilist.NewClient(cfg.AniListEndpoint, &http.Client{}, slog.Default())
	resolver := resolve.NewService(client, resolve.ServiceConfig{
		Policy: policy,
		Cache:  resolve.NewCache(cfg.ResolveCacheTTL),
		Request: anilist.RequestOptions{
			AttemptTimeout: cfg.AniListAttemptTimeout,
			MaxAttempts:    cfg.AniListMaxAttempts,
			BaseDelay:      cfg.AniListBaseDelay,
			MaxRetryDelay:  cfg.AniListMaxRetryDelay,
		},
	}, slog.Default())

	app := apihttp.NewServer(cfg, db, resolver)

	// Stored settings override the environment defaults for the refresh loop.
	settings := repository.NewSettingsRepository(db)
	refreshInterval := time.Duration(cfg.RefreshMinutes) * time.Minute
	if setting, err := settings.Get("refresh_minutes"); err == nil && setting != nil {
		if minutes, convErr := strconv.Atoi(strings.TrimSpace(setting.Value)); convErr == nil && minutes > 0 {
			refreshInterval = time.Duration(minutes) * time.Minute
		}
	}
	var refreshStatuses []string
	if setting, err := settings.Get("refresh_statuses"); err == nil && setting != nil {
		for _, status := range strings.Split(setting.Value, ",") {
			if status = strings.TrimSpace(status); status != "" {
				refreshStatuses = append(refreshStatuses, status)
			}
		}
	}

	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	poller := scheduler.NewPoller(
		repository.NewLibraryRepository(db),
		resolver,
		scheduler.PollerConfig{
			Interval: refreshInterval,
			Statuses: refreshStatuses,
		},
		slog.Default(),
	)
	if cfg.RefreshEnabled {
		poller.Start(pollerCtx)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	slog.Info("api started", "port", cfg.Port, "env", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down server")
	pollerCancel()
	poller.StopWait(2 * time.Second)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
