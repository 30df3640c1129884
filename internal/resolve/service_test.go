package resolve_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/anilist"
	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
	"github.com/gabriel/anime-watchlist/backend/internal/filter"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
	"github.com/gabriel/anime-watchlist/backend/internal/search"
)

type fakeCatalog struct {
	mu sync.Mutex

	searchOneFn  func(title string) (*catalog.Record, anilist.Result, error)
	searchPageFn func(title string, page int, perPage int) (anilist.Page, error)
	listFn       func(page int) (anilist.Page, error)
	byID         map[int]catalog.Record

	searchOneCalls  []string
	searchPageCalls []string
	listCalls       int
}

func (f *fakeCatalog) SearchOne(_ context.Context, title string, _ anilist.RequestOptions) (*catalog.Record, anilist.Result, error) {
	f.mu.Lock()
	f.searchOneCalls = append(f.searchOneCalls, title)
	f.mu.Unlock()
	if f.searchOneFn == nil {
		return nil, anilist.Result{OK: true}, nil
	}
	return f.searchOneFn(title)
}

func (f *fakeCatalog) SearchPage(_ context.Context, title string, page int, perPage int, _ anilist.RequestOptions) (anilist.Page, error) {
	f.mu.Lock()
	f.searchPageCalls = append(f.searchPageCalls, title)
	f.mu.Unlock()
	if f.searchPageFn == nil {
		return anilist.Page{Result: anilist.Result{OK: true}}, nil
	}
	return f.searchPageFn(title, page, perPage)
}

func (f *fakeCatalog) GetByID(_ context.Context, id int, _ anilist.RequestOptions) (*catalog.Record, anilist.Result, error) {
	if record, ok := f.byID[id]; ok {
		record := record
		return &record, anilist.Result{OK: true}, nil
	}
	return nil, anilist.Result{OK: true}, nil
}

func (f *fakeCatalog) SeasonPage(_ context.Context, _ int, _ string, page int, _ int, _ anilist.RequestOptions) (anilist.Page, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.listFn(page)
}

func (f *fakeCatalog) YearRangePage(_ context.Context, _ int, page int, _ int, _ anilist.RequestOptions) (anilist.Page, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.listFn(page)
}

func newTestService(fake *fakeCatalog, cache *resolve.Cache) *resolve.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return resolve.NewService(fake, resolve.ServiceConfig{
		Policy: filter.DefaultPolicy(),
		Cache:  cache,
	}, logger)
}

func strPtr(value string) *string { return &value }
func intPtr(value int) *int       { return &value }

func mediaRecord(id int, romaji string) catalog.Record {
	return catalog.Record{
		ID:              id,
		Title:           catalog.Title{Romaji: strPtr(romaji)},
		Format:          strPtr(catalog.FormatTV),
		CountryOfOrigin: strPtr("JP"),
		Episodes:        intPtr(12),
		Genres:          []string{"Action"},
	}
}

func okPage(media ...catalog.Record) anilist.Page {
	return anilist.Page{Media: media, Result: anilist.Result{OK: true, Status: 200}}
}

func TestResolveOnePrimaryHit(t *testing.T) {
	record := mediaRecord(7, "Attack on Titan")
	fake := &fakeCatalog{
		searchOneFn: func(string) (*catalog.Record, anilist.Result, error) {
			r := record
			return &r, anilist.Result{OK: true}, nil
		},
	}

	service := newTestService(fake, nil)
	got, err := service.ResolveOne(context.Background(), "Attack on Titan", resolve.ResolveOptions{})
	if err != nil {
		t.Fatalf("ResolveOne error: %v", err)
	}
	if got == nil || got.ID != 7 {
		t.Fatalf("expected record 7, got %+v", got)
	}
	if len(fake.searchPageCalls) != 0 {
		t.Errorf("primary hit should not trigger fallback, saw %v", fake.searchPageCalls)
	}
}

func TestResolveOneFallsBackOverVariants(t *testing.T) {
	ineligible := mediaRecord(3, "Fate/Zero 2nd Season")
	ineligible.Genres = []string{"Hentai"}

	fallbackKey := search.NormalizeForCompare("Fate/Zero")
	fake := &fakeCatalog{
		searchOneFn: func(string) (*catalog.Record, anilist.Result, error) {
			r := ineligible
			return &r, anilist.Result{OK: true}, nil
		},
		searchPageFn: func(title string, _ int, _ int) (anilist.Page, error) {
			if search.NormalizeForCompare(title) == fallbackKey {
				return okPage(mediaRecord(10, "Fate/Zero")), nil
			}
			return okPage(), nil
		},
		byID: map[int]catalog.Record{10: mediaRecord(10, "Fate/Zero")},
	}

	service := newTestService(fake, nil)
	got, err := service.ResolveOne(context.Background(), "Fate/Zero 2nd Season", resolve.ResolveOptions{})
	if err != nil {
		t.Fatalf("ResolveOne error: %v", err)
	}
	if got == nil || got.ID != 10 {
		t.Fatalf("expected fallback record 10, got %+v", got)
	}
}

func TestResolveOneMissReturnsNilNil(t *testing.T) {
	fake := &fakeCatalog{}

	service := newTestService(fake, nil)
	got, err := service.ResolveOne(context.Background(), "Completely Unknown Show", resolve.ResolveOptions{})
	if err != nil {
		t.Fatalf("a miss must not be an error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestResolveOneRejectsLowScoreCandidates(t *testing.T) {
	fake := &fakeCatalog{
		searchPageFn: func(string, int, int) (anilist.Page, error) {
			return okPage(mediaRecord(99, "Completely Different Show")), nil
		},
		byID: map[int]catalog.Record{99: mediaRecord(99, "Completely Different Show")},
	}

	service := newTestService(fake, nil)
	got, err := service.ResolveOne(context.Background(), "Shingeki no Kyojin: The Final Season", resolve.ResolveOptions{SkipPrimary: true})
	if err != nil {
		t.Fatalf("ResolveOne error: %v", err)
	}
	if got != nil {
		t.Fatalf("low-similarity candidate must not be accepted, got %+v", got)
	}
}

func TestResolveOnePropagatesCancellation(t *testing.T) {
	fake := &fakeCatalog{
		searchOneFn: func(string) (*catalog.Record, anilist.Result, error) {
			return nil, anilist.Result{}, context.Canceled
		},
	}

	service := newTestService(fake, nil)
	_, err := service.ResolveOne(context.Background(), "Anything", resolve.ResolveOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResolveOneUsesCache(t *testing.T) {
	record := mediaRecord(7, "Attack on Titan")
	fake := &fakeCatalog{
		searchOneFn: func(string) (*catalog.Record, anilist.Result, error) {
			r := record
			return &r, anilist.Result{OK: true}, nil
		},
	}

	service := newTestService(fake, resolve.NewCache(time.Minute))

	for i := 0; i < 2; i++ {
		got, err := service.ResolveOne(context.Background(), "Attack on Titan", resolve.ResolveOptions{})
		if err != nil {
			t.Fatalf("ResolveOne error: %v", err)
		}
		if got == nil || got.ID != 7 {
			t.Fatalf("expected record 7, got %+v", got)
		}
	}

	if len(fake.searchOneCalls) != 1 {
		t.Errorf("expected 1 upstream call with a warm cache, got %d", len(fake.searchOneCalls))
	}
}

func TestSearchFiltersAndRanks(t *testing.T) {
	explicit := mediaRecord(1, "Attack on Titan XXX")
	explicit.Genres = []string{"Hentai"}

	fake := &fakeCatalog{
		searchPageFn: func(string, int, int) (anilist.Page, error) {
			return okPage(
				explicit,
				mediaRecord(2, "Attack no Kyojin"),
				mediaRecord(3, "Attack on Titan"),
			), nil
		},
	}

	service := newTestService(fake, nil)
	candidates, err := service.Search(context.Background(), "Attack on Titan", 10, resolve.ResolveOptions{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 eligible candidates, got %d", len(candidates))
	}
	if candidates[0].Record.ID != 3 {
		t.Errorf("expected exact match ranked first, got %d", candidates[0].Record.ID)
	}
	if candidates[0].Score != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", candidates[0].Score)
	}
}

func TestLookupAppliesEligibility(t *testing.T) {
	explicit := mediaRecord(4, "Some Explicit Show")
	explicit.Genres = []string{"Hentai"}

	fake := &fakeCatalog{byID: map[int]catalog.Record{
		4: explicit,
		5: mediaRecord(5, "Some Show"),
	}}

	service := newTestService(fake, nil)

	got, err := service.Lookup(context.Background(), 5, resolve.ResolveOptions{})
	if err != nil || got == nil || got.ID != 5 {
		t.Fatalf("expected record 5, got %+v err %v", got, err)
	}

	got, err = service.Lookup(context.Background(), 4, resolve.ResolveOptions{})
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if got != nil {
		t.Fatalf("ineligible record must not be returned, got %+v", got)
	}

	got, err = service.Lookup(context.Background(), 12345, resolve.ResolveOptions{})
	if err != nil || got != nil {
		t.Fatalf("unknown id should be nil, nil; got %+v err %v", got, err)
	}
}
