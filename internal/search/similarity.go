package search

import "strings"

// AcceptancePolicy carries the tuned thresholds used to accept or reject the
// top-ranked candidate of a fallback search. The values are empirical; they
// pin current matching behavior and are kept configurable rather than
// re-derived.
type AcceptancePolicy struct {
	MinScore               float64
	AmbiguityScoreCeiling  float64
	AmbiguityMinLead       float64
	SupplementalMinScore   float64
	SupplementalNoSubMin   float64
	SupplementalBandMax    float64
	SupplementalBandLead   float64
	ShortTitleRuneLimit    int
	ShortTitleRelaxedScore float64
}

func DefaultAcceptancePolicy() AcceptancePolicy {
	return AcceptancePolicy{
		MinScore:               0.36,
		AmbiguityScoreCeiling:  0.45,
		AmbiguityMinLead:       0.02,
		SupplementalMinScore:   0.42,
		SupplementalNoSubMin:   0.55,
		SupplementalBandMax:    0.5,
		SupplementalBandLead:   0.03,
		ShortTitleRuneLimit:    4,
		ShortTitleRelaxedScore: 0.3,
	}
}

// Similarity scores two strings in [0, 1] as the max of the bigram Dice
// coefficient and substring coverage over their compare keys.
func Similarity(a string, b string) float64 {
	keyA := NormalizeForCompare(a)
	keyB := NormalizeForCompare(b)
	if keyA == "" || keyB == "" {
		return 0
	}

	dice := diceCoefficient(keyA, keyB)
	coverage := substringCoverage(keyA, keyB)
	if coverage > dice {
		return coverage
	}
	return dice
}

// BestSimilarity scores a query against a candidate's full title set and
// keeps the best field score.
func BestSimilarity(query string, titles []string) float64 {
	best := 0.0
	for _, title := range titles {
		if score := Similarity(query, title); score > best {
			best = score
		}
	}
	return best
}

// HasSubstringMatch reports whether either compare key contains the other.
func HasSubstringMatch(a string, b string) bool {
	keyA := NormalizeForCompare(a)
	keyB := NormalizeForCompare(b)
	if keyA == "" || keyB == "" {
		return false
	}
	return strings.Contains(keyA, keyB) || strings.Contains(keyB, keyA)
}

// diceCoefficient computes the bigram Dice coefficient over rune bigrams of
// two already-normalized keys. A single-rune key contributes itself as its
// only "bigram".
func diceCoefficient(keyA string, keyB string) float64 {
	bigramsA := runeBigrams(keyA)
	bigramsB := runeBigrams(keyB)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	counts := make(map[string]int, len(bigramsA))
	for _, bigram := range bigramsA {
		counts[bigram]++
	}

	intersection := 0
	for _, bigram := range bigramsB {
		if counts[bigram] > 0 {
			counts[bigram]--
			intersection++
		}
	}

	return 2 * float64(intersection) / float64(len(bigramsA)+len(bigramsB))
}

func runeBigrams(key string) []string {
	runes := []rune(key)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) == 1 {
		return []string{string(runes)}
	}

	bigrams := make([]string, 0, len(runes)-1)
	for index := 0; index < len(runes)-1; index++ {
		bigrams = append(bigrams, string(runes[index:index+2]))
	}
	return bigrams
}

func substringCoverage(keyA string, keyB string) float64 {
	if keyA == keyB {
		return 1
	}

	shorter, longer := keyA, keyB
	if runeLength(shorter) > runeLength(longer) {
		shorter, longer = longer, shorter
	}
	if !strings.Contains(longer, shorter) {
		return 0
	}
	return float64(runeLength(shorter)) / float64(runeLength(longer))
}

// EffectiveMinScore relaxes the configured floor for very short titles so
// legitimate two-to-four-rune titles are not starved by the default floor.
func (p AcceptancePolicy) EffectiveMinScore(query string) float64 {
	if runeLength(NormalizeForCompare(query)) <= p.ShortTitleRuneLimit && p.ShortTitleRelaxedScore < p.MinScore {
		return p.ShortTitleRelaxedScore
	}
	return p.MinScore
}

// Accept decides whether the top-ranked candidate is a trustworthy match.
// runnerUpScore is the second-best score, or a negative value when there is
// no runner-up. Supplemental formats (OVA/TV_SHORT) get a stricter floor and
// a wider ambiguity band, and without a literal substring containment they
// must clear an even higher bar.
func (p AcceptancePolicy) Accept(query string, topScore float64, runnerUpScore float64, supplemental bool, hasSubstring bool) bool {
	minScore := p.EffectiveMinScore(query)
	if supplemental {
		if p.SupplementalMinScore > minScore {
			minScore = p.SupplementalMinScore
		}
		if !hasSubstring && p.SupplementalNoSubMin > minScore {
			minScore = p.SupplementalNoSubMin
		}
	}
	if topScore < minScore {
		return false
	}

	if runnerUpScore >= 0 {
		lead := topScore - runnerUpScore
		if topScore < p.AmbiguityScoreCeiling && lead < p.AmbiguityMinLead {
			return false
		}
		if supplemental && topScore < p.SupplementalBandMax && lead < p.SupplementalBandLead {
			return false
		}
	}

	return true
}
