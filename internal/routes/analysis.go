package routes

import (
	"math"
	"sort"
	"strings"

	"airline_ops/internal/demand"
	apperrors "airline_ops/internal/errors"
	"airline_ops/internal/models"
)

const (
	benchmarkSpeedKmh = 850.0
	analysisCrewCost  = 1000.0
	maxAnalysisRows   = 5
)

type AnalysisRequest struct {
	Origin        string   `json:"origin"`
	Dest          string   `json:"dest"`
	Via           string   `json:"via"`
	AircraftTypes []string `json:"aircraft_types"`
}

type AnalysisResult struct {
	AircraftType string  `json:"aircraft_type"`
	Frequency    float64 `json:"frequency"`
	LoadFactor   float64 `json:"load_factor"`
	DailyProfit  float64 `json:"daily_profit"`
	RoiScore     float64 `json:"roi_score"`
	Valid        bool    `json:"valid"`
	Error        string  `json:"error,omitempty"`
}

// Analyze ranks candidate aircraft types for a market by daily profit and
// returns at most five rows.
func (b *Builder) Analyze(req AnalysisRequest, variability float64) ([]AnalysisResult, error) {
	fromAp, ok := b.Catalog.Airport(req.Origin)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeAirportNotFound, "airport %s not found", req.Origin)
	}
	toAp, ok := b.Catalog.Airport(req.Dest)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeAirportNotFound, "airport %s not found", req.Dest)
	}
	var viaAp models.Airport
	hasVia := strings.TrimSpace(req.Via) != ""
	if hasVia {
		if viaAp, ok = b.Catalog.Airport(req.Via); !ok {
			return nil, apperrors.Newf(apperrors.CodeAirportNotFound, "via airport %s not found", req.Via)
		}
	}

	distDirect := b.Catalog.Distance(fromAp, toAp)
	if distDirect <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "origin and destination must differ")
	}
	distLeg1, distLeg2 := distDirect, 0.0
	if hasVia {
		distLeg1 = b.Catalog.Distance(fromAp, viaAp)
		distLeg2 = b.Catalog.Distance(viaAp, toAp)
	}
	totalDist := distLeg1 + distLeg2
	directTimeHours := distDirect / benchmarkSpeedKmh

	results := []AnalysisResult{}
	for _, typeID := range req.AircraftTypes {
		ac, ok := b.Catalog.Template(typeID)
		if !ok {
			results = append(results, AnalysisResult{AircraftType: typeID, Error: "Unknown Type"})
			continue
		}
		if distLeg1 > ac.RangeKm || distLeg2 > ac.RangeKm {
			results = append(results, AnalysisResult{AircraftType: ac.ID, Error: "Range Exceeded"})
			continue
		}
		seats := max(ac.Seats, 1)

		blockSpeed := ac.CruiseKmh * 0.9
		if blockSpeed <= 0 {
			blockSpeed = 100
		}
		travelHours := totalDist / blockSpeed
		if hasVia {
			travelHours += float64(ac.TurnaroundMin) / 60.0
		}

		// Lose 10% of the market per hour slower than a direct jet.
		demandFactor := 1.0 - math.Max(0, travelHours-directTimeHours)*0.10
		if demandFactor < 0.1 {
			demandFactor = 0.1
		}
		baseDemand := float64(b.Demand.EstimateDistance(distDirect, fromAp, toAp, ac, 1, demand.Options{Variability: variability}))
		load := math.Min(baseDemand*demandFactor, float64(seats))

		roundTripMins := (travelHours*60 + float64(ac.TurnaroundMin)) * 2
		freq := 1.0
		if roundTripMins > 0 {
			freq = math.Max(1, math.Floor((24*60)/roundTripMins))
		}

		price := math.Max(50, DefaultFarePerKm*totalDist)
		landingFees := toAp.LandingFee
		if hasVia {
			landingFees += viaAp.LandingFee
		}
		costPerFlight := totalDist*ac.FuelCost + landingFees + analysisCrewCost
		dailyProfit := (load*price - costPerFlight) * freq

		costToBuy := b.Catalog.Economics(ac.ID).Price
		results = append(results, AnalysisResult{
			AircraftType: ac.ID,
			Frequency:    freq,
			LoadFactor:   load / float64(seats) * 100,
			DailyProfit:  dailyProfit,
			RoiScore:     dailyProfit * 365 / costToBuy * 100,
			Valid:        true,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Valid != results[j].Valid {
			return results[i].Valid
		}
		return results[i].DailyProfit > results[j].DailyProfit
	})
	if len(results) > maxAnalysisRows {
		results = results[:maxAnalysisRows]
	}
	return results, nil
}
