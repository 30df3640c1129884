package filter

import (
	"regexp"
	"strings"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
)

// Supplemental formats are more likely to be promotional or ancillary clips
// than mainline content, so they get extra scrutiny.
var supplementalFormats = map[string]struct{}{
	catalog.FormatOVA:     {},
	catalog.FormatTVShort: {},
	catalog.FormatONA:     {},
	catalog.FormatSpecial: {},
}

var (
	promoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bPV\b`),
		regexp.MustCompile(`(?i)\bCM\b`),
		regexp.MustCompile(`(?i)\bMV\b`),
		regexp.MustCompile(`(?i)\bweb\s*CM\b`),
		regexp.MustCompile(`(?i)\bteaser\b`),
		regexp.MustCompile(`(?i)\btrailer\b`),
		regexp.MustCompile(`(?i)\bmusic\s+video\b`),
		regexp.MustCompile(`(?i)\bnon[-\s]?credit\b`),
		regexp.MustCompile(`(?i)\bcreditless\b`),
		regexp.MustCompile(`プロモーション`),
		regexp.MustCompile(`ミュージックビデオ`),
		regexp.MustCompile(`ノンクレジット`),
		regexp.MustCompile(`特報`),
		regexp.MustCompile(`予告`),
	}

	ancillaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbonus\b`),
		regexp.MustCompile(`(?i)\bextra\b`),
		regexp.MustCompile(`(?i)\bdigest\b`),
		regexp.MustCompile(`(?i)\brecap\b`),
		regexp.MustCompile(`(?i)\bmaking[-\s]?of\b`),
		regexp.MustCompile(`(?i)\bpicture\s+drama\b`),
		regexp.MustCompile(`総集編`),
		regexp.MustCompile(`ダイジェスト`),
		regexp.MustCompile(`メイキング`),
		regexp.MustCompile(`映像特典`),
	}
)

func IsSupplementalFormat(format *string) bool {
	if format == nil {
		return false
	}
	_, ok := supplementalFormats[normalizeFormat(*format)]
	return ok
}

// NotExplicit rejects records whose genre list carries the sentinel
// content-safety genre.
func (p Policy) NotExplicit(record *catalog.Record) bool {
	for _, genre := range record.Genres {
		if strings.EqualFold(strings.TrimSpace(genre), p.SentinelGenre) {
			return false
		}
	}
	return true
}

// FormatAllowed accepts an absent format only when the policy tolerates
// unknown formats; otherwise the format must be on the allow-list.
func (p Policy) FormatAllowed(record *catalog.Record) bool {
	if record.Format == nil || strings.TrimSpace(*record.Format) == "" {
		return p.AllowUnknownFormat
	}
	return p.formatAllowed(*record.Format)
}

// CountryAllowed accepts an absent origin only when the policy tolerates
// unknown countries; otherwise the origin must equal the required code.
func (p Policy) CountryAllowed(record *catalog.Record) bool {
	if record.CountryOfOrigin == nil || strings.TrimSpace(*record.CountryOfOrigin) == "" {
		return p.AllowUnknownCountry
	}
	return strings.EqualFold(strings.TrimSpace(*record.CountryOfOrigin), p.RequiredCountry)
}

// NotPromotional rejects supplemental-format entries that look like
// promotional or ancillary clips rather than mainline content. Mainline
// formats pass unconditionally. An unknown episode count is treated as
// "allow" so legitimately unannounced upcoming titles are not blocked.
func (p Policy) NotPromotional(record *catalog.Record) bool {
	if !IsSupplementalFormat(record.Format) {
		return true
	}

	text := promoScanText(record)
	if matchesAny(text, promoPatterns) || matchesAnyKeyword(text, p.ExtraPromoKeywords) {
		return false
	}

	episodesKnown := record.Episodes != nil
	if matchesAny(text, ancillaryPatterns) || matchesAnyKeyword(text, p.ExtraAncillaryWords) {
		if episodesKnown && *record.Episodes <= 1 {
			return false
		}
	}

	if isMusicOnlySingle(record) {
		return false
	}

	if episodesKnown && *record.Episodes <= 0 {
		return false
	}

	return true
}

// IsDisplayEligible composes all four checks; a record must pass every one
// to ever be returned to a caller.
func (p Policy) IsDisplayEligible(record *catalog.Record) bool {
	if record == nil {
		return false
	}
	return p.NotExplicit(record) &&
		p.FormatAllowed(record) &&
		p.CountryAllowed(record) &&
		p.NotPromotional(record)
}

func promoScanText(record *catalog.Record) string {
	parts := record.TitleFields()
	if record.Description != nil {
		parts = append(parts, *record.Description)
	}
	return strings.Join(parts, "\n")
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func matchesAnyKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// isMusicOnlySingle flags single-episode ONA/SPECIAL entries whose entire
// genre list is exactly {Music}; these are almost always music videos filed
// as media entries.
func isMusicOnlySingle(record *catalog.Record) bool {
	if record.Format == nil {
		return false
	}
	format := normalizeFormat(*record.Format)
	if format != catalog.FormatONA && format != catalog.FormatSpecial {
		return false
	}
	if record.Episodes == nil || *record.Episodes != 1 {
		return false
	}
	return len(record.Genres) == 1 && strings.EqualFold(strings.TrimSpace(record.Genres[0]), "Music")
}
