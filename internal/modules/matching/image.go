package matching

import (
	"math/bits"
	"strings"

	"github.com/lostradar/lostradar-backend/internal/types"
)

// Relative weights of the hash kinds, renormalized over whichever subset
// both sides actually share.
const (
	phashWeight   = 0.5
	dhashWeight   = 0.3
	avgHashWeight = 0.2

	hashAgreementFloor = 0.8
	hashAgreementBoost = 0.10
)

// ImageScore compares the perceptual hash sets of two reports. Each report
// may carry several images; the best-scoring image pair wins. Absent when
// no image pair shares a hash kind, and also when the best weighted
// similarity falls under the rejection gate: a low-confidence image signal
// must act as an absence, not a weak positive that dilutes the composite.
func ImageScore(cfg Config, a, b []types.ReportImageHash) Signal {
	best := NoSignal()
	for _, ha := range a {
		if ha.Empty() {
			continue
		}
		for _, hb := range b {
			if hb.Empty() {
				continue
			}
			s := hashPairScore(cfg, ha, hb)
			if s.Present() && (!best.Present() || s.Value() > best.Value()) {
				best = s
			}
		}
	}
	return best
}

func hashPairScore(cfg Config, a, b types.ReportImageHash) Signal {
	type kind struct {
		weight float64
		a, b   string
	}
	kinds := []kind{
		{phashWeight, a.PHash, b.PHash},
		{dhashWeight, a.DHash, b.DHash},
		{avgHashWeight, a.AvgHash, b.AvgHash},
	}

	weightSum := 0.0
	weighted := 0.0
	strong := 0
	for _, k := range kinds {
		sim, ok := hexHashSimilarity(k.a, k.b)
		if !ok {
			continue
		}
		weighted += sim * k.weight
		weightSum += k.weight
		if sim > hashAgreementFloor {
			strong++
		}
	}
	if weightSum == 0 {
		return NoSignal()
	}
	score := weighted / weightSum

	if score < cfg.ImageRejectBelow() {
		return NoSignal()
	}
	if strong >= 2 {
		score *= 1.0 + hashAgreementBoost
	}
	return SignalOf(score)
}

// hexHashSimilarity converts the Hamming distance between two equal-length
// hex hashes to a similarity in [0,1] (4 bits per hex digit). A length
// mismatch is a hard non-match for that hash kind.
func hexHashSimilarity(a, b string) (float64, bool) {
	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if a == "" || b == "" || len(a) != len(b) {
		return 0, false
	}
	dist := 0
	for i := 0; i < len(a); i++ {
		da, ok := hexNibble(a[i])
		if !ok {
			return 0, false
		}
		db, ok := hexNibble(b[i])
		if !ok {
			return 0, false
		}
		dist += bits.OnesCount8(da ^ db)
	}
	return 1.0 - float64(dist)/float64(4*len(a)), true
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
