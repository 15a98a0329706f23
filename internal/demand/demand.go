// Package demand estimates passengers for a single flight leg.
package demand

import (
	"math"
	"strings"

	"airline_ops/internal/geo"
	"airline_ops/internal/models"
	"airline_ops/internal/rand"
)

const (
	DefaultVariability = 0.08

	// ReferenceFarePerKm prices the fare demand is measured against.
	ReferenceFarePerKm = 0.16

	minBaseDemand   = 35
	minDemand       = 20
	longHaulKm      = 2500
	maxLongPenalty  = 0.35
	stopoverPenalty = 0.8
)

type Options struct {
	// Price is the offered fare; zero means the reference fare.
	Price    float64
	Stopover bool
	// Variability bounds the multiplicative noise; zero means DefaultVariability.
	Variability float64
}

// Model is pure apart from its noise source.
type Model struct {
	Rand rand.Source
}

func New(src rand.Source) *Model {
	return &Model{Rand: src}
}

// ReferenceFare is the fare at which price elasticity is neutral.
func ReferenceFare(distKm float64) float64 {
	return ReferenceFarePerKm * distKm
}

// Estimate returns expected passengers for one leg between two airports.
func (m *Model) Estimate(from, to models.Airport, ac models.Aircraft, freq int, opts Options) int {
	dist := geo.Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return m.EstimateDistance(dist, from, to, ac, freq, opts)
}

// EstimateDistance is Estimate with a precomputed distance.
func (m *Model) EstimateDistance(dist float64, from, to models.Airport, ac models.Aircraft, freq int, opts Options) int {
	if freq < 1 {
		freq = 1
	}
	seats := ac.Seats
	if seats < 1 {
		seats = 1
	}
	variability := opts.Variability
	if variability <= 0 {
		variability = DefaultVariability
	}

	base := 60 + int(dist/45)
	if base < minBaseDemand {
		base = minBaseDemand
	}
	// Airports with more traffic generate more base demand.
	hubWeight := (airportWeight(from.Type) + airportWeight(to.Type)) / 2
	base = int(float64(base) * hubWeight)
	if base > seats*3 {
		base = seats * 3
	}

	d := int(float64(base) * Elasticity(opts.Price, dist) * (1.0 + float64(freq-1)*0.08))

	// Small regional equipment feels less attractive on long hauls.
	if dist > longHaulKm && (strings.Contains(strings.ToLower(ac.Role), "regional") || seats < 120) {
		penalty := math.Min(maxLongPenalty, (dist-longHaulKm)/8000)
		d = int(float64(d) * (1 - penalty))
	}
	if opts.Stopover {
		d = int(float64(d) * stopoverPenalty)
	}

	noise := 1 + ((m.Rand.Float64()*2 - 1) * variability)
	if noise < 0.5 {
		noise = 0.5
	}
	d = int(float64(d) * noise)
	if d < minDemand {
		d = minDemand
	}
	return d
}

// Elasticity is the demand multiplier for an offered price on a leg of
// dist km, exp(-3(ratio-1)) clamped to [0.1, 2.5].
func Elasticity(price, dist float64) float64 {
	ref := ReferenceFare(dist)
	ratio := 1.0
	if price > 0 && ref > 0 {
		ratio = price / ref
	}
	e := math.Exp(-3.0 * (ratio - 1.0))
	if e < 0.1 {
		e = 0.1
	}
	if e > 2.5 {
		e = 2.5
	}
	return e
}

func airportWeight(t string) float64 {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "large_airport":
		return 1.6
	case "medium_airport":
		return 1.25
	case "small_airport":
		return 0.85
	default:
		return 0.95
	}
}
