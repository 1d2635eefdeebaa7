package matching

import (
	"math"
	"regexp"
	"strings"

	"github.com/lostradar/lostradar-backend/internal/types"
)

// Blend weights for the three vector similarity terms. Cosine carries the
// semantic direction; the bounded inverse-Euclidean term sees magnitude
// differences cosine ignores; the raw inner product rewards near-exact
// embedding matches.
const (
	textCosineBlend    = 0.7
	textEuclideanBlend = 0.2
	textDotBlend       = 0.1

	textCategoryBoost = 0.15
	textColorBoost    = 0.10
	textKeywordBoost  = 0.05
)

// TextInput is the text-side view of one report.
type TextInput struct {
	Embedding []float32
	Category  string
	Colors    []string
	Keywords  []string
}

// TextInputFromReport derives the scorer input from a stored report.
func TextInputFromReport(r *types.Report) TextInput {
	if r == nil {
		return TextInput{}
	}
	return TextInput{
		Embedding: r.EmbeddingVector(),
		Category:  strings.ToLower(strings.TrimSpace(r.Category)),
		Colors:    r.ColorTags(),
		Keywords:  Tokenize(r.Title + " " + r.Description),
	}
}

// TextScore blends cosine, inverse-Euclidean, and inner-product similarity
// between the two embeddings, then applies capped multiplicative metadata
// boosts. Absent when either embedding is missing or dimensions differ.
func TextScore(src, cand TextInput) Signal {
	if len(src.Embedding) == 0 || len(cand.Embedding) == 0 || len(src.Embedding) != len(cand.Embedding) {
		return NoSignal()
	}

	var dot, na, nb float64
	for i := 0; i < len(src.Embedding); i++ {
		x := float64(src.Embedding[i])
		y := float64(cand.Embedding[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return NoSignal()
	}

	cosine := dot / (math.Sqrt(na) * math.Sqrt(nb))
	l2 := math.Sqrt(na + nb - 2*dot)
	if math.IsNaN(l2) {
		l2 = 0
	}
	invEuclidean := 1.0 / (1.0 + l2)

	score := textCosineBlend*cosine + textEuclideanBlend*invEuclidean + textDotBlend*dot

	if src.Category != "" && src.Category == cand.Category {
		score *= 1.0 + textCategoryBoost
	}
	if overlap := setOverlap(src.Colors, cand.Colors); overlap > 0 {
		score *= 1.0 + textColorBoost*overlap
	}
	if overlap := setOverlap(src.Keywords, cand.Keywords); overlap > 0 {
		score *= 1.0 + textKeywordBoost*overlap
	}

	return SignalOf(score)
}

var reToken = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}\p{N}]+)*`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true, "by": true,
	"and": true, "or": true, "as": true, "at": true, "from": true,
	"my": true, "it": true, "is": true, "was": true, "near": true,
	"lost": true, "found": true, "item": true,
}

// Tokenize extracts lower-cased keyword tokens from free text, dropping
// stopwords and single characters.
func Tokenize(raw string) []string {
	parts := reToken.FindAllString(raw, -1)
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		t := strings.ToLower(p)
		if stopwords[t] || len(t) <= 1 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// setOverlap is the Jaccard overlap of two string sets; symmetric, in [0,1].
func setOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aSet := make(map[string]bool, len(a))
	for _, s := range a {
		aSet[s] = true
	}
	inter := 0
	union := len(aSet)
	seenB := make(map[string]bool, len(b))
	for _, s := range b {
		if seenB[s] {
			continue
		}
		seenB[s] = true
		if aSet[s] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
