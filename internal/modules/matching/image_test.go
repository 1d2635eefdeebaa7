package matching

import (
	"math"
	"testing"

	"github.com/lostradar/lostradar-backend/internal/types"
)

func TestImageScoreIdenticalHashes(t *testing.T) {
	cfg := testConfig()
	h := []types.ReportImageHash{{PHash: "a1b2c3d4e5f60718"}}
	s := ImageScore(cfg, h, h)
	if !s.Present() {
		t.Fatalf("expected present signal")
	}
	if s.Value() != 1.0 {
		t.Fatalf("expected 1.0, got %v", s.Value())
	}
}

func TestImageScoreWeakSimilarityIsAbsent(t *testing.T) {
	cfg := testConfig()
	a := []types.ReportImageHash{{PHash: "0000000000000000"}}
	b := []types.ReportImageHash{{PHash: "ffffffffffffffff"}}
	if s := ImageScore(cfg, a, b); s.Present() {
		t.Fatalf("expected absent signal for dissimilar hashes, got %v", s.Value())
	}
}

func TestImageScoreAgreementBonus(t *testing.T) {
	cfg := testConfig()
	// 40-bit hashes: phash differs by 4 bits (0.90), dhash by 6 bits (0.85).
	a := []types.ReportImageHash{{PHash: "0000000000", DHash: "0000000000"}}
	b := []types.ReportImageHash{{PHash: "000000000f", DHash: "00000000f3"}}

	want := (0.90*phashWeight + 0.85*dhashWeight) / (phashWeight + dhashWeight) * (1.0 + hashAgreementBoost)
	got := ImageScore(cfg, a, b)
	if !got.Present() {
		t.Fatalf("expected present signal")
	}
	if math.Abs(got.Value()-want) > 1e-9 {
		t.Fatalf("want %v, got %v", want, got.Value())
	}
}

func TestImageScoreLengthMismatchSkipsKind(t *testing.T) {
	cfg := testConfig()
	a := []types.ReportImageHash{{PHash: "00ff", DHash: "a1b2c3d4"}}
	b := []types.ReportImageHash{{PHash: "00ff00ff", DHash: "a1b2c3d4"}}
	s := ImageScore(cfg, a, b)
	if !s.Present() {
		t.Fatalf("expected present signal from dhash alone")
	}
	if s.Value() != 1.0 {
		t.Fatalf("expected 1.0 from identical dhash, got %v", s.Value())
	}
}

func TestImageScoreNoSharedKinds(t *testing.T) {
	cfg := testConfig()
	a := []types.ReportImageHash{{PHash: "00ff00ff"}}
	b := []types.ReportImageHash{{DHash: "00ff00ff"}}
	if s := ImageScore(cfg, a, b); s.Present() {
		t.Fatalf("expected absent signal when no hash kind is shared")
	}
}

func TestImageScoreBestPairWins(t *testing.T) {
	cfg := testConfig()
	a := []types.ReportImageHash{
		{PHash: "000000000f"}, // 0.90 against b
		{PHash: "0000000000"}, // 1.00 against b
	}
	b := []types.ReportImageHash{{PHash: "0000000000"}}
	s := ImageScore(cfg, a, b)
	if s.Value() != 1.0 {
		t.Fatalf("expected best pair score 1.0, got %v", s.Value())
	}
}

func TestImageScoreEmptyHashSets(t *testing.T) {
	cfg := testConfig()
	if s := ImageScore(cfg, nil, []types.ReportImageHash{{PHash: "00ff"}}); s.Present() {
		t.Fatalf("expected absent signal for empty side")
	}
}

func TestHexHashSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
		ok   bool
	}{
		{"ff", "ff", 1.0, true},
		{"ff", "00", 0.0, true},
		{"f0", "0f", 0.0, true},
		{"FF", "ff", 1.0, true}, // case-insensitive
		{"ff", "fff", 0, false},
		{"gg", "gg", 0, false},
		{"", "", 0, false},
	}
	for _, tc := range cases {
		got, ok := hexHashSimilarity(tc.a, tc.b)
		if ok != tc.ok || math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("hexHashSimilarity(%q,%q): want (%v,%v), got (%v,%v)", tc.a, tc.b, tc.want, tc.ok, got, ok)
		}
	}
}
