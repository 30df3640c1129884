package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const DefaultMaxVariants = 6

var (
	seasonSuffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`第\s*\d+\s*期\s*$`),
		regexp.MustCompile(`(?i)\s*season\s*\d+\s*$`),
		regexp.MustCompile(`(?i)\s*\d+(?:st|nd|rd|th)\s+season\s*$`),
		regexp.MustCompile(`(?i)\s*part\s*\d+\s*$`),
		regexp.MustCompile(`(?i)\s*final\s+season\s*$`),
	}

	bracketSuffixPattern  = regexp.MustCompile(`\s*[（(\[【「].*[）)\]】」]\s*$`)
	japaneseSuffixPattern = regexp.MustCompile(`\s*(?:映画|劇場版|総集編|完結編)\s*$`)

	punctToSpaceReplacer = strings.NewReplacer(
		"-", " ", ".", " ", "_", " ", ",", " ", ":", " ", ";", " ",
		"!", " ", "?", " ", "(", " ", ")", " ", "[", " ", "]", " ",
		"{", " ", "}", " ", "'", " ", "\"", " ", "/", " ", "\\", " ",
		"|", " ", "+", " ", "=", " ", "#", " ", "&", " ", "*", " ",
		"！", " ", "？", " ", "：", " ", "、", " ", "。", " ",
		"（", " ", "）", " ", "「", " ", "」", " ", "・", " ",
	)

	// Characters that commonly separate a main title from a subtitle.
	titleDelimiters = []rune{':', '：', '|', '｜', '/', '／', '〜', '～', '-', '－', '—', '―', '・'}

	trailingBangs = "!?！？"
)

// NormalizeForCompare canonicalizes a title into a comparison key: NFKC
// normalization, lowercasing, then dropping everything that is not a letter
// or a digit. The key is only ever used for equality and substring checks,
// never sent upstream. Idempotent.
func NormalizeForCompare(text string) string {
	folded := strings.ToLower(norm.NFKC.String(text))
	var builder strings.Builder
	builder.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// BuildSearchVariants produces alternate query strings for a title in a fixed
// priority order, de-duplicated by compare key. Upstream search is a literal
// substring match on title fields, so season suffixes, subtitles and symbol
// noise are stripped in stages rather than all at once. Variants shorter than
// two runes are never emitted; output is capped at maxVariants.
func BuildSearchVariants(text string, maxVariants int) []string {
	if maxVariants <= 0 {
		maxVariants = DefaultMaxVariants
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	candidates := make([]string, 0, 12)
	candidates = append(candidates, trimmed)
	candidates = append(candidates, collapseWhitespace(trimmed))
	candidates = append(candidates, strings.TrimRight(trimmed, trailingBangs))
	candidates = append(candidates, stripSeasonSuffix(trimmed))
	candidates = append(candidates, stripSubtitleSuffix(trimmed))
	candidates = append(candidates, collapseWhitespace(punctToSpaceReplacer.Replace(trimmed)))
	candidates = append(candidates, truncateAtDelimiter(trimmed))
	candidates = append(candidates, leadingTokens(trimmed, 2))
	candidates = append(candidates, leadingTokens(trimmed, 1))
	candidates = append(candidates, truncateBeforeParticle(trimmed))

	variants := make([]string, 0, maxVariants)
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if runeLength(candidate) < 2 {
			continue
		}
		key := NormalizeForCompare(candidate)
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, candidate)
		if len(variants) >= maxVariants {
			break
		}
	}

	return variants
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func stripSeasonSuffix(value string) string {
	for _, pattern := range seasonSuffixPatterns {
		if stripped := strings.TrimSpace(pattern.ReplaceAllString(value, "")); stripped != value && stripped != "" {
			return stripped
		}
	}
	return value
}

func stripSubtitleSuffix(value string) string {
	if stripped := strings.TrimSpace(bracketSuffixPattern.ReplaceAllString(value, "")); stripped != value && stripped != "" {
		return stripped
	}
	if stripped := strings.TrimSpace(japaneseSuffixPattern.ReplaceAllString(value, "")); stripped != value && stripped != "" {
		return stripped
	}
	return value
}

func truncateAtDelimiter(value string) string {
	runes := []rune(value)
	for index, r := range runes {
		if !isTitleDelimiter(r) {
			continue
		}
		prefix := strings.TrimSpace(string(runes[:index]))
		if runeLength(prefix) >= 2 {
			return prefix
		}
		return value
	}
	return value
}

func isTitleDelimiter(r rune) bool {
	for _, delimiter := range titleDelimiters {
		if r == delimiter {
			return true
		}
	}
	return false
}

func leadingTokens(value string, count int) string {
	tokens := strings.Fields(value)
	if len(tokens) <= count {
		return value
	}
	return strings.Join(tokens[:count], " ")
}

// truncateBeforeParticle cuts a Japanese title before a の/は particle, but
// only when the particle sits at rune position >= 2 so the prefix stays
// meaningful.
func truncateBeforeParticle(value string) string {
	runes := []rune(value)
	for index, r := range runes {
		if r != 'の' && r != 'は' {
			continue
		}
		if index < 2 {
			continue
		}
		prefix := strings.TrimSpace(string(runes[:index]))
		if runeLength(prefix) >= 2 {
			return prefix
		}
	}
	return value
}

func runeLength(value string) int {
	return len([]rune(value))
}
