package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestNormalizePairOrdersLexically(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	x, y := NormalizePair(b, a)
	if x != a || y != b {
		t.Fatalf("want (%v,%v), got (%v,%v)", a, b, x, y)
	}
	x, y = NormalizePair(a, b)
	if x != a || y != b {
		t.Fatalf("already ordered pair changed: got (%v,%v)", x, y)
	}
}

func TestNormalizePairSameID(t *testing.T) {
	a := uuid.New()
	x, y := NormalizePair(a, a)
	if x != a || y != a {
		t.Fatalf("got (%v,%v)", x, y)
	}
}

func TestValidMatchStatus(t *testing.T) {
	for _, s := range []string{MatchStatusCandidate, MatchStatusPromoted, MatchStatusSuppressed, MatchStatusDismissed} {
		if !ValidMatchStatus(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "archived", "CANDIDATE"} {
		if ValidMatchStatus(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}
