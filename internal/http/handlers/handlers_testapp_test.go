package handlers_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
	"github.com/gabriel/anime-watchlist/backend/internal/config"
	"github.com/gabriel/anime-watchlist/backend/internal/database"
	apihttp "github.com/gabriel/anime-watchlist/backend/internal/http"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
	"github.com/gofiber/fiber/v2"
)

// stubResolver satisfies the catalog resolver surface with canned responses
// so handler tests never touch the network.
type stubResolver struct {
	searchFn     func(title string, limit int) ([]catalog.SearchCandidate, error)
	resolveOneFn func(title string) (*catalog.Record, error)
	lookupFn     func(id int) (*catalog.Record, error)
	yearPageFn   func(year int, page int) (resolve.YearPage, error)
	yearAllFn    func(year int) ([]catalog.Record, error)
}

func (s *stubResolver) Search(_ context.Context, title string, limit int, _ resolve.ResolveOptions) ([]catalog.SearchCandidate, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(title, limit)
}

func (s *stubResolver) ResolveOne(_ context.Context, title string, _ resolve.ResolveOptions) (*catalog.Record, error) {
	if s.resolveOneFn == nil {
		return nil, nil
	}
	return s.resolveOneFn(title)
}

func (s *stubResolver) Lookup(_ context.Context, id int, _ resolve.ResolveOptions) (*catalog.Record, error) {
	if s.lookupFn == nil {
		return nil, nil
	}
	return s.lookupFn(id)
}

func (s *stubResolver) ListByYear(_ context.Context, year int, page int, _ resolve.YearListOptions) (resolve.YearPage, error) {
	if s.yearPageFn == nil {
		return resolve.YearPage{OK: true, Status: 200}, nil
	}
	return s.yearPageFn(year, page)
}

func (s *stubResolver) ListByYearAll(_ context.Context, year int, _ resolve.YearListOptions) ([]catalog.Record, error) {
	if s.yearAllFn == nil {
		return nil, nil
	}
	return s.yearAllFn(year)
}

func setupTestApp(t *testing.T, resolver *stubResolver) (*sql.DB, *fiber.App) {
	t.Helper()

	if resolver == nil {
		resolver = &stubResolver{}
	}

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(currentFile), "..", "..", "..", "migrations")
	if err := database.ApplyMigrations(db, migrationsPath); err != nil {
		_ = db.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	if err := database.SeedDefaults(db); err != nil {
		_ = db.Close()
		t.Fatalf("seed defaults: %v", err)
	}

	cfg := config.Config{AppName: "test-app"}
	app := apihttp.NewServer(cfg, db, resolver)

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = db.Close()
	})

	return db, app
}

func strVal(value string) *string { return &value }
func intVal(value int) *int       { return &value }

func stubRecord(id int, english string) *catalog.Record {
	return &catalog.Record{
		ID:              id,
		Title:           catalog.Title{Romaji: strVal(english), English: strVal(english)},
		Format:          strVal(catalog.FormatTV),
		CountryOfOrigin: strVal("JP"),
		Episodes:        intVal(12),
		Status:          strVal(catalog.StatusReleasing),
		SeasonYear:      intVal(2024),
		Season:          strVal(catalog.SeasonWinter),
	}
}
