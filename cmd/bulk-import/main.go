package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/anilist"
	"github.com/gabriel/anime-watchlist/backend/internal/config"
	"github.com/gabriel/anime-watchlist/backend/internal/database"
	"github.com/gabriel/anime-watchlist/backend/internal/filter"
	"github.com/gabriel/anime-watchlist/backend/internal/models"
	"github.com/gabriel/anime-watchlist/backend/internal/repository"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
)

type summary struct {
	Total     int
	Resolved  int
	Unmatched int
	Imported  int
	Duplicate int
	Failed    int
}

func main() {
	var (
		filePath        = flag.String("file", "", "Path to a text file with one title per line (required)")
		profileKey      = flag.String("profile-key", "default", "Profile key to import into")
		status          = flag.String("status", "bookmark", "Status for imported entries (watched|bookmark)")
		concurrency     = flag.Int("concurrency", 3, "Number of concurrent resolutions")
		perTitleTimeout = flag.Duration("per-title-timeout", 9*time.Second, "Per-title resolve timeout")
		dryRun          = flag.Bool("dry-run", false, "Resolve titles without writing to DB")
	)
	flag.Parse()

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if strings.TrimSpace(*filePath) == "" {
		slog.Error("missing required -file flag")
		os.Exit(1)
	}
	if *status != "watched" && *status != "bookmark" {
		slog.Error("invalid -status, expected watched or bookmark", "status", *status)
		os.Exit(1)
	}

	titles, err := readTitles(*filePath)
	if err != nil {
		slog.Error("failed to read titles file", "path", *filePath, "error", err)
		os.Exit(1)
	}
	if len(titles) == 0 {
		slog.Info("no titles found in file", "path", *filePath)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

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

	profiles := repository.NewProfileRepository(db)
	profile, err := profiles.GetByKey(strings.TrimSpace(*profileKey))
	if err != nil {
		slog.Error("failed to look up profile", "key", *profileKey, "error", err)
		os.Exit(1)
	}
	if profile == nil {
		slog.Error("profile not found", "key", *profileKey)
		os.Exit(1)
	}

	policy, err := filter.LoadPolicy(cfg.EligibilityPolicyPath)
	if err != nil {
		slog.Error("failed to load eligibility policy", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := resolver.ResolveMany(ctx, titles, resolve.BulkOptions{
		Concurrency:     *concurrency,
		PerTitleTimeout: *perTitleTimeout,
		OnProgress: func(progress resolve.Progress) {
			slog.Info("resolved title",
				"completed", progress.Completed,
				"total", progress.Total,
				"title", progress.Title,
				"found", progress.Found,
				"fallback", progress.UsedFallback,
				"timed_out", progress.TimedOut,
			)
		},
	})
	if err != nil {
		slog.Warn("bulk resolution interrupted", "error", err)
	}

	library := repository.NewLibraryRepository(db)
	stats := summary{Total: len(titles)}

	for index, title := range titles {
		record := records[index]
		if record == nil {
			stats.Unmatched++
			continue
		}
		stats.Resolved++

		if *dryRun {
			slog.Info("would import", "title", title, "media_id", record.ID, "display", record.DisplayTitle())
			stats.Imported++
			continue
		}

		existing, err := library.GetByMediaID(profile.ID, record.ID)
		if err != nil {
			stats.Failed++
			slog.Warn("duplicate check failed", "title", title, "error", err)
			continue
		}
		if existing != nil {
			stats.Duplicate++
			continue
		}

		entry := &models.LibraryEntry{
			ProfileID: profile.ID,
			Title:     title,
			Status:    *status,
		}
		repository.ApplySnapshot(entry, record)

		if _, err := library.Create(entry); err != nil {
			stats.Failed++
			slog.Warn("failed to import entry", "title", title, "error", err)
			continue
		}
		stats.Imported++
	}

	slog.Info(
		"bulk import completed",
		"dry_run", *dryRun,
		"total", stats.Total,
		"resolved", stats.Resolved,
		"unmatched", stats.Unmatched,
		"imported", stats.Imported,
		"duplicate", stats.Duplicate,
		"failed", stats.Failed,
	)
}

func readTitles(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open titles file: %w", err)
	}
	defer file.Close()

	seen := make(map[string]struct{})
	titles := make([]string, 0)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		title := strings.TrimSpace(scanner.Text())
		if title == "" || strings.HasPrefix(title, "#") {
			continue
		}
		key := strings.ToLower(title)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, title)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read titles file: %w", err)
	}

	return titles, nil
}
