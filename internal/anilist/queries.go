package anilist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
)

// mediaFieldSet is the shared projection requested by every media query.
const mediaFieldSet = `
	id
	title {
		native
		romaji
		english
	}
	coverImage {
		extraLarge
		large
		medium
	}
	season
	seasonYear
	status
	startDate {
		year
		month
		day
	}
	averageScore
	episodes
	genres
	format
	countryOfOrigin
	bannerImage
	description
`

var (
	querySearchOne = fmt.Sprintf(`query ($search: String) {
	Media(search: $search, type: ANIME) {%s}
}`, mediaFieldSet)

	querySearchPage = fmt.Sprintf(`query ($search: String, $page: Int, $perPage: Int) {
	Page(page: $page, perPage: $perPage) {
		pageInfo {
			total
			perPage
			currentPage
			lastPage
			hasNextPage
		}
		media(search: $search, type: ANIME) {%s}
	}
}`, mediaFieldSet)

	queryByID = fmt.Sprintf(`query ($id: Int) {
	Media(id: $id, type: ANIME) {%s}
}`, mediaFieldSet)

	querySeasonPage = fmt.Sprintf(`query ($year: Int, $season: MediaSeason, $page: Int, $perPage: Int) {
	Page(page: $page, perPage: $perPage) {
		pageInfo {
			total
			perPage
			currentPage
			lastPage
			hasNextPage
		}
		media(seasonYear: $year, season: $season, type: ANIME, sort: POPULARITY_DESC) {%s}
	}
}`, mediaFieldSet)

	queryYearRangePage = fmt.Sprintf(`query ($from: FuzzyDateInt, $to: FuzzyDateInt, $page: Int, $perPage: Int) {
	Page(page: $page, perPage: $perPage) {
		pageInfo {
			total
			perPage
			currentPage
			lastPage
			hasNextPage
		}
		media(startDate_greater: $from, startDate_lesser: $to, type: ANIME, sort: POPULARITY_DESC) {%s}
	}
}`, mediaFieldSet)
)

type mediaEnvelope struct {
	Media *catalog.Record `json:"Media"`
}

type pageEnvelope struct {
	Page struct {
		PageInfo pageInfoPayload  `json:"pageInfo"`
		Media    []catalog.Record `json:"media"`
	} `json:"Page"`
}

type pageInfoPayload struct {
	Total       *int `json:"total"`
	PerPage     *int `json:"perPage"`
	CurrentPage *int `json:"currentPage"`
	LastPage    *int `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
}

// Page is one decoded page of a list query plus the retry-engine diagnostics
// that produced it.
type Page struct {
	Media    []catalog.Record
	PageInfo catalog.PageInfo
	Result   Result
}

// SearchOne runs the single-result search by title. A nil record with a nil
// error means upstream found nothing.
func (c *Client) SearchOne(ctx context.Context, title string, opts RequestOptions) (*catalog.Record, Result, error) {
	result, err := c.Do(ctx, querySearchOne, map[string]any{"search": title}, opts)
	if err != nil {
		return nil, result, err
	}
	if !result.OK {
		return nil, result, nil
	}

	var envelope mediaEnvelope
	if err := json.Unmarshal(result.Data, &envelope); err != nil {
		return nil, result, fmt.Errorf("decode media payload: %w", err)
	}
	return envelope.Media, result, nil
}

// SearchPage runs the small paged list search by title.
func (c *Client) SearchPage(ctx context.Context, title string, page int, perPage int, opts RequestOptions) (Page, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}

	variables := map[string]any{"search": title, "page": page, "perPage": perPage}
	return c.listPage(ctx, querySearchPage, variables, page, perPage, opts)
}

// GetByID fetches the full record for a known id.
func (c *Client) GetByID(ctx context.Context, id int, opts RequestOptions) (*catalog.Record, Result, error) {
	result, err := c.Do(ctx, queryByID, map[string]any{"id": id}, opts)
	if err != nil {
		return nil, result, err
	}
	if !result.OK {
		return nil, result, nil
	}

	var envelope mediaEnvelope
	if err := json.Unmarshal(result.Data, &envelope); err != nil {
		return nil, result, fmt.Errorf("decode media payload: %w", err)
	}
	return envelope.Media, result, nil
}

// SeasonPage lists one page of a year+season listing.
func (c *Client) SeasonPage(ctx context.Context, year int, season string, page int, perPage int, opts RequestOptions) (Page, error) {
	variables := map[string]any{"year": year, "season": season, "page": page, "perPage": perPage}
	return c.listPage(ctx, querySeasonPage, variables, page, perPage, opts)
}

// YearRangePage lists one page of a start-date-bounded listing; used when no
// season narrows the query.
func (c *Client) YearRangePage(ctx context.Context, year int, page int, perPage int, opts RequestOptions) (Page, error) {
	variables := map[string]any{
		"from":    year*10000 + 101,
		"to":      year*10000 + 1231,
		"page":    page,
		"perPage": perPage,
	}
	return c.listPage(ctx, queryYearRangePage, variables, page, perPage, opts)
}

func (c *Client) listPage(ctx context.Context, query string, variables map[string]any, page int, perPage int, opts RequestOptions) (Page, error) {
	result, err := c.Do(ctx, query, variables, opts)
	if err != nil {
		return Page{Result: result}, err
	}
	if !result.OK {
		return Page{Result: result}, nil
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(result.Data, &envelope); err != nil {
		return Page{Result: result}, fmt.Errorf("decode page payload: %w", err)
	}

	return Page{
		Media:    envelope.Page.Media,
		PageInfo: buildPageInfo(envelope.Page.PageInfo, page, perPage, len(envelope.Page.Media)),
		Result:   result,
	}, nil
}

// buildPageInfo prefers upstream-reported pagination values and derives the
// rest: hasNextPage falls back to "a full page of rows came back", lastPage
// to "current+1 if a next page is implied".
func buildPageInfo(payload pageInfoPayload, requestedPage int, requestedPerPage int, rows int) catalog.PageInfo {
	info := catalog.PageInfo{
		Total:       payload.Total,
		PerPage:     requestedPerPage,
		CurrentPage: requestedPage,
		HasNextPage: payload.HasNextPage,
	}
	if payload.PerPage != nil && *payload.PerPage > 0 {
		info.PerPage = *payload.PerPage
	}
	if payload.CurrentPage != nil && *payload.CurrentPage > 0 {
		info.CurrentPage = *payload.CurrentPage
	}

	if !info.HasNextPage && payload.LastPage == nil && rows >= info.PerPage && info.PerPage > 0 {
		info.HasNextPage = true
	}

	switch {
	case payload.LastPage != nil && *payload.LastPage > 0:
		info.LastPage = *payload.LastPage
	case info.HasNextPage:
		info.LastPage = info.CurrentPage + 1
	default:
		info.LastPage = info.CurrentPage
	}
	if info.LastPage < info.CurrentPage {
		info.LastPage = info.CurrentPage
	}

	return info
}
