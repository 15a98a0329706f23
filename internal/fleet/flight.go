package fleet

import (
	"math"
	"strings"

	"airline_ops/internal/demand"
	"airline_ops/internal/models"
	"airline_ops/internal/routes"
)

const (
	// Flight cost runs a little above the builder's estimate.
	fuelOverhead  = 1.05
	flightCharge  = 900.0
	minFareFloor  = 220.0
	fallbackPerKm = 0.18
)

type flight struct {
	plan     *models.FlightPlan
	duration int
	revenue  float64
	cost     float64
}

// advanceFlight moves an active aircraft one minute through its flight
// sub-state machine. It reports the economics of a leg when one departs.
func (s *Sim) advanceFlight(st *models.GameState, ac *models.OwnedCraft) (flight, bool) {
	if !ac.State.Valid() {
		ac.State = models.AircraftIdle
	}

	switch ac.State {
	case models.AircraftFlying:
		if ac.TimerMin > 0 {
			ac.TimerMin--
		}
		if ac.TimerMin > 0 {
			return flight{}, false
		}
		if ac.FlightPlan != nil {
			ac.Location = strings.ToUpper(ac.FlightPlan.Dest)
		}
		ac.State = models.AircraftTurnaround
		ac.TimerMin = max(1, ac.TurnaroundMin)
		ac.FlightPlan = nil
		return flight{}, false

	case models.AircraftIdle:
		rt := assignRoute(st, ac)
		if rt == nil {
			return flight{}, false
		}
		if ac.Location == "" {
			if legs := routes.Legs(rt); len(legs) > 0 {
				ac.Location = legs[0].Origin
			}
		}
		ac.State = models.AircraftTurnaround
		ac.TimerMin = max(1, ac.TurnaroundMin)
		return flight{}, false
	}

	// Turnaround.
	if ac.TimerMin > 0 {
		ac.TimerMin--
	}
	if ac.TimerMin > 0 {
		return flight{}, false
	}
	rt := assignRoute(st, ac)
	if rt == nil {
		ac.State = models.AircraftIdle
		return flight{}, false
	}
	leg, ok := nextLeg(ac, rt)
	if !ok {
		ac.State = models.AircraftIdle
		return flight{}, false
	}
	f, ok := s.planLeg(ac, rt, leg, st.DemandVariability)
	if !ok {
		ac.State = models.AircraftIdle
		return flight{}, false
	}

	ac.State = models.AircraftFlying
	ac.FlightPlan = f.plan
	ac.Location = leg.Origin
	ac.TimerMin = f.duration

	load := 0.0
	if ac.Seats > 0 {
		load = math.Min(1, float64(f.plan.Passengers)/float64(ac.Seats))
	}
	rt.LastTickRevenue = f.revenue
	rt.LastTickLoad = load
	rt.LastTickProfit = f.revenue - f.cost
	return f, true
}

// nextLeg returns the leg at the stored index, resyncing to a leg that
// departs from the aircraft's location (or the first leg) when they
// disagree, and advances the index past it.
func nextLeg(ac *models.OwnedCraft, rt *models.Route) (routes.Leg, bool) {
	legs := routes.Legs(rt)
	if len(legs) == 0 {
		return routes.Leg{}, false
	}
	if ac.RouteLegIndex < 0 {
		ac.RouteLegIndex = 0
	}
	start := ac.RouteLegIndex % len(legs)
	// The stopover is the origin of two legs, so the stored index wins
	// whenever it already departs from here.
	if ac.Location != "" && !routes.SameAirport(legs[start].Origin, ac.Location) {
		start = 0
		for idx, leg := range legs {
			if routes.SameAirport(leg.Origin, ac.Location) {
				start = idx
				break
			}
		}
	}
	ac.RouteLegIndex = (start + 1) % len(legs)
	return legs[start], true
}

// planLeg prices one departure. ok is false for a degenerate leg: unknown
// endpoints, zero distance, beyond range or no cruise speed.
func (s *Sim) planLeg(ac *models.OwnedCraft, rt *models.Route, leg routes.Leg, variability float64) (flight, bool) {
	fromAp, ok := s.Catalog.Airport(leg.Origin)
	if !ok {
		return flight{}, false
	}
	toAp, ok := s.Catalog.Airport(leg.Dest)
	if !ok {
		return flight{}, false
	}
	dist := s.Catalog.Distance(fromAp, toAp)
	if dist <= 0 || (ac.RangeKm > 0 && dist > ac.RangeKm) || ac.CruiseKmh <= 0 {
		return flight{}, false
	}

	price := rt.UserPrice
	if price <= 0 {
		price = rt.PricePerSeat
	}
	if price <= 0 {
		price = math.Max(minFareFloor, fallbackPerKm*dist)
	}
	pax := s.Demand.EstimateDistance(dist, fromAp, toAp, ac.Template(), rt.FrequencyPerDay,
		demand.Options{Price: price, Variability: variability})
	sold := max(0, min(pax, ac.Seats))

	duration := int(math.Ceil(dist / ac.CruiseKmh * 60))
	return flight{
		plan: &models.FlightPlan{
			Origin:     leg.Origin,
			Dest:       leg.Dest,
			Passengers: sold,
		},
		duration: max(1, duration),
		revenue:  float64(sold) * price,
		cost:     dist*ac.FuelCost*fuelOverhead + flightCharge + fromAp.LandingFee + toAp.LandingFee,
	}, true
}

// assignRoute returns the route ac flies. An unassigned aircraft, or one
// whose route is gone or flown by another type, takes the route of its
// template with the fewest aircraft, earliest route first on ties.
func assignRoute(st *models.GameState, ac *models.OwnedCraft) *models.Route {
	if ac.RouteID != "" {
		for i := range st.Routes {
			rt := &st.Routes[i]
			if rt.ID == ac.RouteID && strings.EqualFold(rt.AircraftID, ac.TemplateID) {
				return rt
			}
		}
		ac.RouteID = ""
		ac.RouteLegIndex = 0
	}

	var best *models.Route
	bestCount := 0
	for i := range st.Routes {
		rt := &st.Routes[i]
		if !strings.EqualFold(rt.AircraftID, ac.TemplateID) {
			continue
		}
		n := 0
		for _, other := range st.Fleet {
			if other.ID != ac.ID && other.RouteID != "" && other.RouteID == rt.ID {
				n++
			}
		}
		if best == nil || n < bestCount {
			best, bestCount = rt, n
		}
	}
	if best != nil {
		ac.RouteID = best.ID
		ac.RouteLegIndex = 0
	}
	return best
}
