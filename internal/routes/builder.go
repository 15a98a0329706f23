// Package routes prices candidate routes and decomposes them into legs.
package routes

import (
	"strings"

	"airline_ops/internal/catalog"
	"airline_ops/internal/demand"
	apperrors "airline_ops/internal/errors"
	"airline_ops/internal/models"

	"github.com/google/uuid"
)

const (
	// DefaultFarePerKm prices a route when the player sets no fare.
	DefaultFarePerKm = 0.13
	// HandlingCharge is the fixed per-leg cost in route estimates.
	HandlingCharge = 800.0
	fallbackFare   = 150.0
)

// Request describes a route to price. Via and UserPrice are optional.
type Request struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Via        string  `json:"via,omitempty"`
	AircraftID string  `json:"aircraft_id"`
	Frequency  int     `json:"frequency_per_day"`
	UserPrice  float64 `json:"user_price"`
	OneWay     bool    `json:"one_way"`
}

type Builder struct {
	Catalog *catalog.Catalog
	Demand  *demand.Model
}

func NewBuilder(cat *catalog.Catalog, dm *demand.Model) *Builder {
	return &Builder{Catalog: cat, Demand: dm}
}

type leg struct {
	dist     float64
	demand   int
	sold     int
	price    float64
	revenue  float64
	cost     float64
	blockMin float64
	fees     float64
}

// Build prices a direct or one-stop route. variability feeds the demand noise.
func (b *Builder) Build(req Request, variability float64) (models.Route, error) {
	freq := req.Frequency
	if freq < 1 {
		freq = 1
	}
	fromID := normalize(req.From)
	toID := normalize(req.To)
	viaID := normalize(req.Via)
	fromAp, ok := b.Catalog.Airport(fromID)
	if !ok {
		return models.Route{}, apperrors.Newf(apperrors.CodeAirportNotFound, "airport %s not found", fromID)
	}
	toAp, ok := b.Catalog.Airport(toID)
	if !ok {
		return models.Route{}, apperrors.Newf(apperrors.CodeAirportNotFound, "airport %s not found", toID)
	}
	var viaAp models.Airport
	hasVia := viaID != ""
	if hasVia {
		if viaAp, ok = b.Catalog.Airport(viaID); !ok {
			return models.Route{}, apperrors.Newf(apperrors.CodeAirportNotFound, "via airport %s not found", viaID)
		}
	}
	if fromID == toID || (hasVia && (viaID == fromID || viaID == toID)) {
		return models.Route{}, apperrors.New(apperrors.CodeInvalidRequest, "route endpoints must differ")
	}

	ac, ok := b.Catalog.Template(req.AircraftID)
	if !ok {
		return models.Route{}, apperrors.Newf(apperrors.CodeAircraftNotFound, "aircraft type %s not found", req.AircraftID)
	}
	if ac.Seats < 1 {
		ac.Seats = 1
	}
	reqRunway := b.Catalog.Economics(ac.ID).RunwayM

	distMain := b.Catalog.Distance(fromAp, toAp)
	var distVia1, distVia2 float64
	if hasVia {
		distVia1 = b.Catalog.Distance(fromAp, viaAp)
		distVia2 = b.Catalog.Distance(viaAp, toAp)
		if distVia1 > ac.RangeKm || distVia2 > ac.RangeKm {
			return models.Route{}, apperrors.Newf(apperrors.CodeRangeExceeded, "route leg exceeds aircraft range of %.0f km", ac.RangeKm)
		}
	} else if distMain > ac.RangeKm {
		return models.Route{}, apperrors.Newf(apperrors.CodeRangeExceeded, "route distance exceeds aircraft range of %.0f km", ac.RangeKm)
	}
	touched := []models.Airport{fromAp, toAp}
	if hasVia {
		touched = append(touched, viaAp)
	}
	for _, ap := range touched {
		if ap.RunwayM < reqRunway {
			return models.Route{}, apperrors.Newf(apperrors.CodeRunwayTooShort, "%s runway too short for %s", ap.Ident, ac.ID)
		}
	}

	baseDistance := distMain
	if baseDistance <= 0 {
		baseDistance = distVia1 + distVia2
	}
	userPrice := req.UserPrice
	if userPrice <= 0 {
		userPrice = DefaultFarePerKm * baseDistance
	}
	if userPrice <= 0 {
		userPrice = fallbackFare
	}
	if baseDistance <= 0 {
		baseDistance = 1
	}

	opts := func(price float64, stopover bool) demand.Options {
		return demand.Options{Price: price, Stopover: stopover, Variability: variability}
	}
	demandLeg := func(a, z models.Airport, dist float64, o demand.Options) int {
		return b.Demand.EstimateDistance(dist, a, z, ac, freq, o)
	}
	// Short legs to or from the stopover are priced by their share of the direct distance.
	priceForLeg := func(dist float64) float64 {
		if dist <= 0 {
			return userPrice
		}
		return userPrice * (dist / baseDistance)
	}
	makeLeg := func(a, z models.Airport, dist float64, d int, price float64) leg {
		sold := min(d, ac.Seats)
		fees := a.LandingFee + z.LandingFee
		return leg{
			dist:     dist,
			demand:   d,
			sold:     sold,
			price:    price,
			revenue:  float64(sold) * price,
			cost:     dist*ac.FuelCost + HandlingCharge + fees,
			blockMin: BlockMinutes(dist, ac),
			fees:     fees,
		}
	}

	var legs []leg
	if hasVia {
		p1, p2 := priceForLeg(distVia1), priceForLeg(distVia2)
		// Legs leaving an endpoint also carry the through market at the full fare.
		d1 := demandLeg(fromAp, viaAp, distVia1, opts(p1, false)) + demandLeg(fromAp, toAp, distMain, opts(userPrice, true))
		d2 := demandLeg(viaAp, toAp, distVia2, opts(p2, false))
		d3 := demandLeg(toAp, viaAp, distVia2, opts(p2, false)) + demandLeg(toAp, fromAp, distMain, opts(userPrice, true))
		d4 := demandLeg(viaAp, fromAp, distVia1, opts(p1, false))
		legs = []leg{
			makeLeg(fromAp, viaAp, distVia1, d1, p1),
			makeLeg(viaAp, toAp, distVia2, d2, p2),
			makeLeg(toAp, viaAp, distVia2, d3, p2),
			makeLeg(viaAp, fromAp, distVia1, d4, p1),
		}
	} else {
		legs = []leg{
			makeLeg(fromAp, toAp, distMain, demandLeg(fromAp, toAp, distMain, opts(userPrice, false)), userPrice),
			makeLeg(toAp, fromAp, distMain, demandLeg(toAp, fromAp, distMain, opts(userPrice, false)), userPrice),
		}
	}

	var totalRevenue, totalCost, totalBlock, totalFees float64
	var totalSold, totalDemand int
	for _, l := range legs {
		totalRevenue += l.revenue
		totalCost += l.cost
		totalSold += l.sold
		totalDemand += l.demand
		totalBlock += l.blockMin
		totalFees += l.fees
	}

	n := float64(len(legs))
	loadFactor := float64(totalSold) / float64(ac.Seats*len(legs))
	curfewBlocked := false
	for _, ap := range touched {
		curfewBlocked = curfewBlocked || ap.Curfew
	}

	return models.Route{
		ID:                uuid.NewString(),
		From:              fromID,
		To:                toID,
		Via:               viaID,
		AircraftID:        ac.ID,
		FrequencyPerDay:   freq,
		OneWay:            req.OneWay,
		EstimatedDemand:   totalDemand,
		PricePerSeat:      userPrice,
		UserPrice:         userPrice,
		EstRevenueTick:    totalRevenue * float64(freq),
		EstCostTick:       totalCost * float64(freq),
		LoadFactor:        loadFactor,
		RevenuePerLeg:     totalRevenue / n,
		CostPerLeg:        totalCost / n,
		LandingFeesPerLeg: totalFees / n,
		ProfitPerTick:     (totalRevenue - totalCost) * float64(freq),
		SeatsSoldPerLeg:   totalSold / len(legs),
		BlockMinutes:      totalBlock,
		Legs:              len(legs),
		CurfewBlocked:     curfewBlocked,
		LastTickRevenue:   totalRevenue * float64(freq),
		LastTickLoad:      loadFactor,
	}, nil
}

// BlockMinutes is flight time plus turnaround for one leg.
func BlockMinutes(dist float64, ac models.Aircraft) float64 {
	if ac.CruiseKmh <= 0 {
		return float64(ac.TurnaroundMin)
	}
	return (dist/ac.CruiseKmh)*60 + float64(ac.TurnaroundMin)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
