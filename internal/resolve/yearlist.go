package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/anilist"
	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
)

const (
	defaultYearPerPage            = 50
	defaultFirstPage429Retries    = 2
	defaultConsecutiveEmptyLimit  = 2
	defaultZeroMatchedPageLimit   = 20
	defaultZeroMatchedGuardAfter  = 30
	firstPage429BaseWait          = time.Second
	defaultYearListAttemptTimeout = 6 * time.Second
)

// YearListOptions narrows and tunes a year listing. The stop-heuristic
// fields guard against an upstream that keeps promising a next page without
// delivering useful rows; their defaults are pragmatic, not derived.
type YearListOptions struct {
	Season          string
	PerPage         int
	IncludeStatuses []string
	ExcludeStatuses []string

	FirstPage429Retries   int
	FirstPage429Wait      time.Duration
	ConsecutiveEmptyLimit int
	ZeroMatchedPageLimit  int
	ZeroMatchedGuardAfter int

	Request anilist.RequestOptions
}

func (o *YearListOptions) applyDefaults() {
	o.Season = strings.ToUpper(strings.TrimSpace(o.Season))
	if o.PerPage <= 0 {
		o.PerPage = defaultYearPerPage
	}
	if o.FirstPage429Retries <= 0 {
		o.FirstPage429Retries = defaultFirstPage429Retries
	}
	if o.FirstPage429Wait <= 0 {
		o.FirstPage429Wait = firstPage429BaseWait
	}
	if o.ConsecutiveEmptyLimit <= 0 {
		o.ConsecutiveEmptyLimit = defaultConsecutiveEmptyLimit
	}
	if o.ZeroMatchedPageLimit <= 0 {
		o.ZeroMatchedPageLimit = defaultZeroMatchedPageLimit
	}
	if o.ZeroMatchedGuardAfter <= 0 {
		o.ZeroMatchedGuardAfter = defaultZeroMatchedGuardAfter
	}
	if o.Request.AttemptTimeout <= 0 {
		o.Request.AttemptTimeout = defaultYearListAttemptTimeout
	}
}

// YearPage is one filtered page of a year listing. OK=false with a nil error
// marks a degraded upstream response identified by Status.
type YearPage struct {
	Items    []catalog.Record
	RawCount int
	PageInfo catalog.PageInfo
	OK       bool
	Status   int
}

// ListByYear fetches and filters a single page of the year (optionally
// season) listing. Page 1 gets dedicated extra retries on 429 with a
// linearly increasing wait, since losing page 1 is fatal to the listing.
func (s *Service) ListByYear(ctx context.Context, year int, page int, opts YearListOptions) (YearPage, error) {
	opts.applyDefaults()
	if page <= 0 {
		page = 1
	}

	fetched, err := s.fetchYearPage(ctx, year, page, opts)
	if err != nil {
		return YearPage{}, err
	}

	if !fetched.Result.OK && fetched.Result.Status == 429 && page == 1 {
		for attempt := 1; attempt <= opts.FirstPage429Retries; attempt++ {
			wait := time.Duration(attempt) * opts.FirstPage429Wait
			if fetched.Result.RetryAfter > wait {
				wait = fetched.Result.RetryAfter
			}
			if !sleepContext(ctx, wait) {
				return YearPage{}, ctx.Err()
			}
			fetched, err = s.fetchYearPage(ctx, year, page, opts)
			if err != nil {
				return YearPage{}, err
			}
			if fetched.Result.OK {
				break
			}
		}
	}

	result := YearPage{
		RawCount: len(fetched.Media),
		PageInfo: fetched.PageInfo,
		OK:       fetched.Result.OK,
		Status:   fetched.Result.Status,
	}
	if !fetched.Result.OK {
		return result, nil
	}

	seen := make(map[int]struct{}, len(fetched.Media))
	items := make([]catalog.Record, 0, len(fetched.Media))
	for _, record := range fetched.Media {
		record := record
		if _, duplicate := seen[record.ID]; duplicate {
			continue
		}
		if !s.rowMatchesListing(&record, year, opts) {
			continue
		}
		seen[record.ID] = struct{}{}
		items = append(items, record)
	}
	result.Items = items

	return result, nil
}

// ListByYearAll walks the listing until exhaustion or a stop heuristic
// fires, deduplicating by id across pages. The accumulated items are always
// returned, alongside any upstream error that cut the walk short.
func (s *Service) ListByYearAll(ctx context.Context, year int, opts YearListOptions) ([]catalog.Record, error) {
	opts.applyDefaults()

	items := make([]catalog.Record, 0, opts.PerPage)
	seen := make(map[int]struct{})

	page := 1
	pagesWalked := 0
	consecutiveEmptyRaw := 0
	consecutiveZeroMatched := 0

	for {
		yearPage, err := s.ListByYear(ctx, year, page, opts)
		if err != nil {
			return items, err
		}
		if !yearPage.OK {
			return items, fmt.Errorf("year listing unavailable at page %d (status %d)", page, yearPage.Status)
		}

		pagesWalked++

		if yearPage.RawCount == 0 {
			consecutiveEmptyRaw++
		} else {
			consecutiveEmptyRaw = 0
		}

		matched := 0
		for _, record := range yearPage.Items {
			if _, duplicate := seen[record.ID]; duplicate {
				continue
			}
			seen[record.ID] = struct{}{}
			items = append(items, record)
			matched++
		}
		if matched == 0 {
			consecutiveZeroMatched++
		} else {
			consecutiveZeroMatched = 0
		}

		if consecutiveEmptyRaw >= opts.ConsecutiveEmptyLimit {
			break
		}
		if pagesWalked >= opts.ZeroMatchedGuardAfter && consecutiveZeroMatched >= opts.ZeroMatchedPageLimit {
			break
		}

		if !yearPage.PageInfo.HasNextPage && yearPage.PageInfo.LastPage <= page {
			break
		}
		page++
	}

	return items, nil
}

func (s *Service) fetchYearPage(ctx context.Context, year int, page int, opts YearListOptions) (anilist.Page, error) {
	if opts.Season != "" {
		return s.client.SeasonPage(ctx, year, opts.Season, page, opts.PerPage, opts.Request)
	}
	return s.client.YearRangePage(ctx, year, page, opts.PerPage, opts.Request)
}

// rowMatchesListing verifies a raw row against the listing request: country
// and format component rules, the season/year echo for season-scoped queries
// (upstream search is not always exact), and the status lists. Absent fields
// are unknown, not mismatches.
func (s *Service) rowMatchesListing(record *catalog.Record, year int, opts YearListOptions) bool {
	if !s.policy.CountryAllowed(record) || !s.policy.FormatAllowed(record) {
		return false
	}

	if opts.Season != "" {
		if record.SeasonYear != nil && *record.SeasonYear != year {
			return false
		}
		if record.Season != nil && !strings.EqualFold(*record.Season, opts.Season) {
			return false
		}
	}

	if record.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*record.Status))
		for _, excluded := range opts.ExcludeStatuses {
			if strings.EqualFold(status, strings.TrimSpace(excluded)) {
				return false
			}
		}
		if len(opts.IncludeStatuses) > 0 {
			included := false
			for _, candidate := range opts.IncludeStatuses {
				if strings.EqualFold(status, strings.TrimSpace(candidate)) {
					included = true
					break
				}
			}
			if !included {
				return false
			}
		}
	}

	return true
}
