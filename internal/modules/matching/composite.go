package matching

// Per-signal quality boosts applied before weighting, and the convergence
// bonuses applied after. Independent signals agreeing is a stronger,
// harder-to-fake indicator than any single high score.
const (
	textQualityFloor = 0.8
	textQualityBoost = 1.10

	imageQualityFloor = 0.9
	imageQualityBoost = 1.15

	geoQualityFloor = 0.9
	geoQualityBoost = 1.05

	diversityMinSignals = 3
	diversityBonus      = 1.05

	highConfidenceFloor      = 0.85
	highConfidenceMinSignals = 2
	highConfidenceBonus      = 1.10
)

// CompositeBreakdown explains how a composite score came together.
type CompositeBreakdown struct {
	Available      int
	HighConfidence int
	WeightedMean   float64
}

// Composite fuses the available signals into one score in [0,1]. Weights of
// absent signals are redistributed by renormalization, so reports that
// simply lack a photo or geotag are not punished for it.
func Composite(cfg Config, s Signals) (float64, CompositeBreakdown) {
	type term struct {
		sig    Signal
		weight float64
		boost  float64
	}
	terms := []term{
		{s.Text, cfg.TextWeight, qualityBoost(s.Text, textQualityFloor, textQualityBoost)},
		{s.Image, cfg.ImageWeight, qualityBoost(s.Image, imageQualityFloor, imageQualityBoost)},
		{s.Geo, cfg.GeoWeight, qualityBoost(s.Geo, geoQualityFloor, geoQualityBoost)},
		{s.Time, cfg.TimeWeight, 1.0},
	}

	bd := CompositeBreakdown{}
	num := 0.0
	den := 0.0
	for _, t := range terms {
		if !t.sig.Present() {
			continue
		}
		bd.Available++
		if t.sig.Value() > highConfidenceFloor {
			bd.HighConfidence++
		}
		num += t.sig.Value() * t.weight * t.boost
		den += t.weight * t.boost
	}
	if den == 0 {
		return 0, bd
	}

	score := num / den
	bd.WeightedMean = score

	if bd.Available >= diversityMinSignals {
		score *= diversityBonus
	}
	if bd.HighConfidence >= highConfidenceMinSignals {
		score *= highConfidenceBonus
	}
	return clamp01(score), bd
}

func qualityBoost(s Signal, floor, boost float64) float64 {
	if s.Exceeds(floor) {
		return boost
	}
	return 1.0
}
