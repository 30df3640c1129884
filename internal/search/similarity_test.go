package search

import (
	"math"
	"testing"
)

func TestSimilarityIdentity(t *testing.T) {
	titles := []string{"Steins;Gate", "ワンピース", "Fate/Zero"}
	for _, title := range titles {
		if score := Similarity(title, title); score != 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, want 1.0", title, title, score)
		}
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Fate/Zero", "Fate/Zero 2nd Season"},
		{"ワンピース", "劇場版 ワンピース"},
		{"Attack on Titan", "Shingeki no Kyojin"},
	}
	for _, pair := range pairs {
		left := Similarity(pair[0], pair[1])
		right := Similarity(pair[1], pair[0])
		if left != right {
			t.Errorf("Similarity(%q, %q) = %v but reversed = %v", pair[0], pair[1], left, right)
		}
	}
}

func TestSimilarityRange(t *testing.T) {
	if score := Similarity("ワンピース", "劇場版 ワンピース"); score <= 0.6 || score > 1 {
		t.Errorf("related titles scored %v, want in (0.6, 1]", score)
	}
	if score := Similarity("ワンピース", "NARUTO"); score != 0 {
		t.Errorf("unrelated scripts scored %v, want 0", score)
	}
	if score := Similarity("", "anything"); score != 0 {
		t.Errorf("empty input scored %v, want 0", score)
	}
}

func TestSimilarityReorderedFragment(t *testing.T) {
	// トワンピ is not contained in ワンピース, so coverage contributes 0 and
	// only the shared ワン and ンピ bigrams count: 2*2/(4+3).
	got := Similarity("ワンピース", "トワンピ")
	want := 4.0 / 7.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}
	if full := Similarity("ワンピース", "ワンピース"); got >= full {
		t.Errorf("reordered fragment %v should score below the exact match %v", got, full)
	}
}

func TestHasSubstringMatch(t *testing.T) {
	if !HasSubstringMatch("One Piece", "ONEPIECE!!") {
		t.Error("expected substring match across punctuation and case")
	}
	if HasSubstringMatch("One Piece", "Bleach") {
		t.Error("unexpected substring match")
	}
	if HasSubstringMatch("", "Bleach") {
		t.Error("empty input should never match")
	}
}

func TestBestSimilarityPicksBestField(t *testing.T) {
	titles := []string{"Shingeki no Kyojin", "Attack on Titan", "進撃の巨人"}
	best := BestSimilarity("Attack on Titan", titles)
	if best != 1.0 {
		t.Errorf("BestSimilarity = %v, want 1.0 via the english field", best)
	}
}

func TestAcceptRejectsBelowFloor(t *testing.T) {
	policy := DefaultAcceptancePolicy()
	if policy.Accept("Attack on Titan", 0.35, -1, false, true) {
		t.Error("score below floor should be rejected")
	}
	if !policy.Accept("Attack on Titan", 0.37, -1, false, true) {
		t.Error("score above floor with no runner-up should be accepted")
	}
}

func TestAcceptShortTitleRelaxedFloor(t *testing.T) {
	policy := DefaultAcceptancePolicy()
	if got := policy.EffectiveMinScore("キル"); got != policy.ShortTitleRelaxedScore {
		t.Errorf("short title floor = %v, want %v", got, policy.ShortTitleRelaxedScore)
	}
	if !policy.Accept("キル", 0.32, -1, false, true) {
		t.Error("short title should accept at the relaxed floor")
	}
	if got := policy.EffectiveMinScore("Attack on Titan"); got != policy.MinScore {
		t.Errorf("long title floor = %v, want %v", got, policy.MinScore)
	}
}

func TestAcceptAmbiguityBand(t *testing.T) {
	policy := DefaultAcceptancePolicy()
	if policy.Accept("Some Show", 0.40, 0.39, false, true) {
		t.Error("low-score near-tie should be rejected as ambiguous")
	}
	if !policy.Accept("Some Show", 0.40, 0.30, false, true) {
		t.Error("low-score with a clear lead should be accepted")
	}
	if !policy.Accept("Some Show", 0.80, 0.79, false, true) {
		t.Error("high-score near-tie is above the ambiguity ceiling and should pass")
	}
}

func TestAcceptSupplementalStricter(t *testing.T) {
	policy := DefaultAcceptancePolicy()
	if policy.Accept("Some Show", 0.40, -1, true, true) {
		t.Error("supplemental format should use the higher floor")
	}
	if !policy.Accept("Some Show", 0.45, -1, true, true) {
		t.Error("supplemental with substring above its floor should pass")
	}
	if policy.Accept("Some Show", 0.50, -1, true, false) {
		t.Error("supplemental without substring needs the no-substring floor")
	}
	if !policy.Accept("Some Show", 0.56, -1, true, false) {
		t.Error("supplemental without substring above the raised floor should pass")
	}
	if policy.Accept("Some Show", 0.45, 0.43, true, true) {
		t.Error("supplemental in the score band with a thin lead should be rejected")
	}
}
