package catalog

import "strings"

// Media seasons as reported by the upstream catalog.
const (
	SeasonWinter = "WINTER"
	SeasonSpring = "SPRING"
	SeasonSummer = "SUMMER"
	SeasonFall   = "FALL"
)

// Media formats as reported by the upstream catalog.
const (
	FormatTV      = "TV"
	FormatTVShort = "TV_SHORT"
	FormatMovie   = "MOVIE"
	FormatOVA     = "OVA"
	FormatONA     = "ONA"
	FormatSpecial = "SPECIAL"
)

// Airing statuses as reported by the upstream catalog.
const (
	StatusReleasing      = "RELEASING"
	StatusNotYetReleased = "NOT_YET_RELEASED"
	StatusFinished       = "FINISHED"
	StatusCancelled      = "CANCELLED"
	StatusHiatus         = "HIATUS"
)

type Title struct {
	Native  *string `json:"native,omitempty"`
	Romaji  *string `json:"romaji,omitempty"`
	English *string `json:"english,omitempty"`
}

type CoverImage struct {
	ExtraLarge *string `json:"extraLarge,omitempty"`
	Large      *string `json:"large,omitempty"`
	Medium     *string `json:"medium,omitempty"`
}

type FuzzyDate struct {
	Year  *int `json:"year,omitempty"`
	Month *int `json:"month,omitempty"`
	Day   *int `json:"day,omitempty"`
}

// Record is a read-only projection of one upstream media entry. Only ID is
// guaranteed present; every other field may be absent, and absence means
// "unknown", never a negative signal.
type Record struct {
	ID              int        `json:"id"`
	Title           Title      `json:"title"`
	CoverImage      CoverImage `json:"coverImage"`
	Season          *string    `json:"season,omitempty"`
	SeasonYear      *int       `json:"seasonYear,omitempty"`
	Status          *string    `json:"status,omitempty"`
	StartDate       *FuzzyDate `json:"startDate,omitempty"`
	AverageScore    *int       `json:"averageScore,omitempty"`
	Episodes        *int       `json:"episodes,omitempty"`
	Genres          []string   `json:"genres,omitempty"`
	Format          *string    `json:"format,omitempty"`
	CountryOfOrigin *string    `json:"countryOfOrigin,omitempty"`
	BannerImage     *string    `json:"bannerImage,omitempty"`
	Description     *string    `json:"description,omitempty"`
}

// TitleFields returns the record's non-empty title variants in
// native, romaji, english order.
func (r *Record) TitleFields() []string {
	fields := make([]string, 0, 3)
	for _, candidate := range []*string{r.Title.Native, r.Title.Romaji, r.Title.English} {
		if candidate == nil {
			continue
		}
		trimmed := strings.TrimSpace(*candidate)
		if trimmed == "" {
			continue
		}
		fields = append(fields, trimmed)
	}
	return fields
}

// DisplayTitle prefers english, then romaji, then native.
func (r *Record) DisplayTitle() string {
	for _, candidate := range []*string{r.Title.English, r.Title.Romaji, r.Title.Native} {
		if candidate == nil {
			continue
		}
		trimmed := strings.TrimSpace(*candidate)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// SearchCandidate pairs a record with its similarity score against a query.
// Candidates are transient ranking artifacts and are never persisted.
type SearchCandidate struct {
	Record    Record  `json:"record"`
	Score     float64 `json:"score"`
	MatchedBy string  `json:"matchedBy,omitempty"`
}

// PageInfo is the pagination cursor state for a year/season listing.
// Total may be absent; HasNextPage is authoritative when upstream supplies
// it, otherwise it is derived from whether a full page of rows came back.
type PageInfo struct {
	Total       *int `json:"total,omitempty"`
	PerPage     int  `json:"perPage"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
}
