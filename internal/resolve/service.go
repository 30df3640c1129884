package resolve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/gabriel/anime-watchlist/backend/internal/anilist"
	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
	"github.com/gabriel/anime-watchlist/backend/internal/filter"
	"github.com/gabriel/anime-watchlist/backend/internal/search"
)

const (
	defaultFallbackVariants = 4
	defaultFallbackPageSize = 10
)

// Catalog is the slice of the upstream client the resolver needs.
type Catalog interface {
	SearchOne(ctx context.Context, title string, opts anilist.RequestOptions) (*catalog.Record, anilist.Result, error)
	SearchPage(ctx context.Context, title string, page int, perPage int, opts anilist.RequestOptions) (anilist.Page, error)
	GetByID(ctx context.Context, id int, opts anilist.RequestOptions) (*catalog.Record, anilist.Result, error)
	SeasonPage(ctx context.Context, year int, season string, page int, perPage int, opts anilist.RequestOptions) (anilist.Page, error)
	YearRangePage(ctx context.Context, year int, page int, perPage int, opts anilist.RequestOptions) (anilist.Page, error)
}

// Service resolves free-text titles against the upstream catalog.
type Service struct {
	client  Catalog
	policy  filter.Policy
	accept  search.AcceptancePolicy
	cache   *Cache
	request anilist.RequestOptions
	logger  *slog.Logger
}

type ServiceConfig struct {
	Policy  filter.Policy
	Accept  search.AcceptancePolicy
	Cache   *Cache
	Request anilist.RequestOptions
}

func NewService(client Catalog, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Accept == (search.AcceptancePolicy{}) {
		cfg.Accept = search.DefaultAcceptancePolicy()
	}
	return &Service{
		client:  client,
		policy:  cfg.Policy,
		accept:  cfg.Accept,
		cache:   cfg.Cache,
		request: cfg.Request,
		logger:  logger,
	}
}

// ResolveOptions tunes a single title resolution.
type ResolveOptions struct {
	SkipPrimary     bool
	DisableFallback bool
	MaxVariants     int
	PageSize        int
	OnRetry         func(anilist.RetryInfo)
}

// Outcome carries the per-item diagnostics the bulk scheduler reports.
type Outcome struct {
	Record       *catalog.Record
	Saw429       bool
	UsedFallback bool
}

// ResolveOne maps a free-text title to at most one eligible catalog record.
// A nil record with a nil error means "not found"; upstream failures degrade
// to "not found" and are surfaced to logs only. The returned error is
// reserved for cancellation.
func (s *Service) ResolveOne(ctx context.Context, title string, opts ResolveOptions) (*catalog.Record, error) {
	outcome, err := s.resolveOne(ctx, title, opts)
	if err != nil {
		return nil, err
	}
	return outcome.Record, nil
}

func (s *Service) resolveOne(ctx context.Context, title string, opts ResolveOptions) (Outcome, error) {
	outcome := Outcome{}
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return outcome, nil
	}

	cacheKey := search.NormalizeForCompare(trimmed)
	if s.cache != nil {
		if record, ok := s.cache.Get(cacheKey); ok {
			outcome.Record = record
			return outcome, nil
		}
	}

	request := s.request
	request.OnRetry = opts.OnRetry

	var rememberedErr error

	if !opts.SkipPrimary {
		record, result, err := s.client.SearchOne(ctx, trimmed, request)
		outcome.Saw429 = outcome.Saw429 || result.Saw429
		switch {
		case err != nil:
			if anilist.IsCancellation(err) {
				return outcome, err
			}
			rememberedErr = err
		case record != nil && s.policy.IsDisplayEligible(record):
			s.cacheRecord(cacheKey, record)
			outcome.Record = record
			return outcome, nil
		}
	}

	if !opts.DisableFallback {
		record, saw429, err := s.resolveByVariants(ctx, trimmed, opts, request)
		outcome.Saw429 = outcome.Saw429 || saw429
		if err != nil {
			if anilist.IsCancellation(err) {
				return outcome, err
			}
			if rememberedErr == nil {
				rememberedErr = err
			}
		}
		if record != nil {
			outcome.UsedFallback = true
			s.cacheRecord(cacheKey, record)
			outcome.Record = record
			return outcome, nil
		}
	}

	if rememberedErr != nil && !anilist.IsCancellation(rememberedErr) {
		s.logger.Warn("title resolution degraded to not-found", "title", trimmed, "error", rememberedErr)
	}

	return outcome, nil
}

// resolveByVariants runs the adaptive fallback: list searches over normalized
// title variants, scored against the original title.
func (s *Service) resolveByVariants(ctx context.Context, title string, opts ResolveOptions, request anilist.RequestOptions) (*catalog.Record, bool, error) {
	maxVariants := opts.MaxVariants
	if maxVariants <= 0 {
		maxVariants = defaultFallbackVariants
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultFallbackPageSize
	}

	originalKey := search.NormalizeForCompare(title)
	variants := make([]string, 0, maxVariants)
	for _, variant := range search.BuildSearchVariants(title, maxVariants+1) {
		if search.NormalizeForCompare(variant) == originalKey {
			continue
		}
		variants = append(variants, variant)
		if len(variants) >= maxVariants {
			break
		}
	}

	saw429 := false
	var rememberedErr error

	for _, variant := range variants {
		page, err := s.client.SearchPage(ctx, variant, 1, pageSize, request)
		saw429 = saw429 || page.Result.Saw429
		if err != nil {
			if anilist.IsCancellation(err) {
				return nil, saw429, err
			}
			if rememberedErr == nil {
				rememberedErr = err
			}
			continue
		}
		if len(page.Media) == 0 {
			continue
		}

		accepted := s.pickCandidate(title, variant, page.Media)
		if accepted == nil {
			continue
		}

		record, result, err := s.client.GetByID(ctx, accepted.Record.ID, request)
		saw429 = saw429 || result.Saw429
		if err != nil {
			if anilist.IsCancellation(err) {
				return nil, saw429, err
			}
			if rememberedErr == nil {
				rememberedErr = err
			}
			continue
		}
		if record != nil && s.policy.IsDisplayEligible(record) {
			return record, saw429, nil
		}
	}

	return nil, saw429, rememberedErr
}

// pickCandidate ranks a page of raw candidates against the original title
// and applies the acceptance rule to the top match.
func (s *Service) pickCandidate(originalTitle string, variant string, media []catalog.Record) *catalog.SearchCandidate {
	candidates := rankCandidates(originalTitle, variant, media)
	if len(candidates) == 0 {
		return nil
	}

	top := candidates[0]
	runnerUp := -1.0
	if len(candidates) > 1 {
		runnerUp = candidates[1].Score
	}

	supplemental := isScorerSupplemental(top.Record.Format)
	hasSubstring := false
	for _, field := range top.Record.TitleFields() {
		if search.HasSubstringMatch(originalTitle, field) {
			hasSubstring = true
			break
		}
	}

	if !s.accept.Accept(originalTitle, top.Score, runnerUp, supplemental, hasSubstring) {
		return nil
	}
	return &top
}

// Lookup fetches the full record for a known catalog id and applies the
// display eligibility policy. A nil record with a nil error means the id is
// unknown upstream or the record is not eligible.
func (s *Service) Lookup(ctx context.Context, id int, opts ResolveOptions) (*catalog.Record, error) {
	if id <= 0 {
		return nil, nil
	}

	request := s.request
	request.OnRetry = opts.OnRetry

	record, _, err := s.client.GetByID(ctx, id, request)
	if err != nil {
		if anilist.IsCancellation(err) {
			return nil, err
		}
		s.logger.Warn("catalog lookup degraded to not-found", "id", id, "error", err)
		return nil, nil
	}
	if record == nil || !s.policy.IsDisplayEligible(record) {
		return nil, nil
	}
	return record, nil
}

// Search returns eligible candidates for a query ranked by similarity.
func (s *Service) Search(ctx context.Context, title string, limit int, opts ResolveOptions) ([]catalog.SearchCandidate, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultFallbackPageSize
	}

	request := s.request
	request.OnRetry = opts.OnRetry

	page, err := s.client.SearchPage(ctx, trimmed, 1, limit, request)
	if err != nil {
		if anilist.IsCancellation(err) {
			return nil, err
		}
		s.logger.Warn("catalog search degraded to empty", "title", trimmed, "error", err)
		return nil, nil
	}

	eligible := make([]catalog.Record, 0, len(page.Media))
	for _, record := range page.Media {
		record := record
		if s.policy.IsDisplayEligible(&record) {
			eligible = append(eligible, record)
		}
	}

	ranked := rankCandidates(trimmed, trimmed, eligible)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func rankCandidates(originalTitle string, matchedBy string, media []catalog.Record) []catalog.SearchCandidate {
	candidates := make([]catalog.SearchCandidate, 0, len(media))
	for _, record := range media {
		score := search.BestSimilarity(originalTitle, record.TitleFields())
		candidates = append(candidates, catalog.SearchCandidate{Record: record, Score: score, MatchedBy: matchedBy})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// isScorerSupplemental covers the formats the acceptance rule treats as
// higher-risk; distinct from the filter's wider supplemental set.
func isScorerSupplemental(format *string) bool {
	if format == nil {
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(*format)) {
	case catalog.FormatOVA, catalog.FormatTVShort:
		return true
	default:
		return false
	}
}

func (s *Service) cacheRecord(key string, record *catalog.Record) {
	if s.cache == nil || key == "" || record == nil {
		return
	}
	s.cache.Set(key, record)
}
