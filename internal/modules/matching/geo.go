package matching

import (
	"math"
	"strings"

	"github.com/lostradar/lostradar-backend/internal/types"
)

const (
	earthRadiusKM = 6371.0

	// Identical city strings with no usable coordinates.
	cityFallbackScore = 0.6
)

// GeoInput is the location view of one report. Coordinates win; a bare city
// string is the fallback.
type GeoInput struct {
	Lat  *float64
	Lng  *float64
	City string
}

// GeoInputFromReport derives the scorer input from a stored report.
func GeoInputFromReport(r *types.Report) GeoInput {
	if r == nil {
		return GeoInput{}
	}
	return GeoInput{Lat: r.Lat, Lng: r.Lng, City: strings.TrimSpace(r.City)}
}

// GeoScore maps the great-circle distance between the two reports onto
// fixed proximity zones; beyond the search radius the signal is absent,
// not zero. Without coordinates an identical city yields a flat fallback.
func GeoScore(cfg Config, a, b GeoInput) Signal {
	if a.Lat != nil && a.Lng != nil && b.Lat != nil && b.Lng != nil {
		d := haversineKM(*a.Lat, *a.Lng, *b.Lat, *b.Lng)
		return distanceZoneScore(cfg, d)
	}
	if a.City != "" && b.City != "" && strings.EqualFold(a.City, b.City) {
		return SignalOf(cityFallbackScore)
	}
	return NoSignal()
}

func distanceZoneScore(cfg Config, distanceKM float64) Signal {
	// The radius caps every zone, even when it is tighter than the
	// fixed ladder below.
	if distanceKM > cfg.GeoRadiusKM {
		return NoSignal()
	}
	switch {
	case distanceKM <= 0.1:
		return SignalOf(1.0)
	case distanceKM <= 0.5:
		return SignalOf(0.95)
	case distanceKM <= 1:
		return SignalOf(0.90)
	case distanceKM <= 2:
		return SignalOf(0.80)
	case distanceKM <= 5:
		return SignalOf(0.70)
	case distanceKM <= 10:
		return SignalOf(0.50)
	case distanceKM <= cfg.GeoRadiusKM:
		return SignalOf(0.30 * math.Exp(-distanceKM/20.0))
	default:
		return NoSignal()
	}
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*sinLng*sinLng
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
