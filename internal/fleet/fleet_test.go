package fleet

import (
	"math"
	"strings"
	"testing"

	"airline_ops/internal/catalog"
	"airline_ops/internal/demand"
	"airline_ops/internal/models"
	"airline_ops/internal/rand"
)

func testSim(src rand.Source) *Sim {
	airports := []models.Airport{
		{Ident: "AAA", Type: "large_airport", Latitude: 0, Longitude: 0, RunwayM: 3200, SlotsPerDay: 200, LandingFee: 3500},
		{Ident: "BBB", Type: "large_airport", Latitude: 0, Longitude: 9, RunwayM: 3200, SlotsPerDay: 200, LandingFee: 3500},
		{Ident: "CCC", Type: "large_airport", Latitude: 0, Longitude: 4.5, RunwayM: 3200, SlotsPerDay: 200, LandingFee: 3500},
	}
	aircraft := []models.Aircraft{a320()}
	cat := catalog.New(airports, aircraft)
	return New(cat, demand.New(src), src)
}

func a320() models.Aircraft {
	return models.Aircraft{ID: "A320", Name: "Airbus A320", Role: "narrowbody", RangeKm: 6100, Seats: 180, CruiseKmh: 840, FuelCost: 3, TurnaroundMin: 3}
}

func owned(id string, status models.Status) models.OwnedCraft {
	tpl := a320()
	return models.OwnedCraft{
		ID:            id,
		TemplateID:    tpl.ID,
		Name:          tpl.Name + " " + id,
		Role:          tpl.Role,
		RangeKm:       tpl.RangeKm,
		Seats:         tpl.Seats,
		CruiseKmh:     tpl.CruiseKmh,
		FuelCost:      tpl.FuelCost,
		TurnaroundMin: tpl.TurnaroundMin,
		Status:        status,
		Condition:     100,
		OwnershipType: models.OwnershipOwned,
		State:         models.AircraftIdle,
	}
}

func directRoute() models.Route {
	return models.Route{ID: "r1", From: "AAA", To: "BBB", AircraftID: "A320", FrequencyPerDay: 1, UserPrice: 130, PricePerSeat: 130, BlockMinutes: 75.5, Legs: 2}
}

func TestTenTickScenario(t *testing.T) {
	sim := testSim(&rand.Fixed{Values: []float64{0.5}})
	st := &models.GameState{
		Cash:   1_000_000,
		Routes: []models.Route{directRoute()},
		Fleet:  []models.OwnedCraft{owned("a1", models.StatusActive)},
	}

	wantStates := []models.AircraftState{
		models.AircraftTurnaround, // tick 1: idle aircraft picks up the route
		models.AircraftTurnaround,
		models.AircraftTurnaround,
		models.AircraftFlying, // tick 4: turnaround done, departs AAA
		models.AircraftFlying,
		models.AircraftFlying,
		models.AircraftFlying,
		models.AircraftFlying,
		models.AircraftFlying,
		models.AircraftFlying,
	}
	departures := 0
	for i, want := range wantStates {
		before := st.Cash
		res := sim.Step(st)
		ac := st.Fleet[0]
		if ac.State != want {
			t.Fatalf("tick %d: state %s, want %s", i+1, ac.State, want)
		}
		if res.Delta < 0 {
			t.Fatalf("tick %d: negative cash delta %.2f", i+1, res.Delta)
		}
		if math.Abs(st.Cash-before-res.Delta) > 1e-6 || st.LastCashDelta != res.Delta {
			t.Fatalf("tick %d: cash moved by %.2f, result says %.2f", i+1, st.Cash-before, res.Delta)
		}
		if res.Flights > 0 {
			departures++
			if res.Delta > res.Revenue {
				t.Fatalf("tick %d: delta %.2f above leg revenue %.2f", i+1, res.Delta, res.Revenue)
			}
			if res.Revenue != float64(ac.Seats)*130 {
				t.Fatalf("tick %d: revenue %.2f, want a full aircraft at 130", i+1, res.Revenue)
			}
		} else if res.Delta != 0 {
			t.Fatalf("tick %d: cash moved without a departure", i+1)
		}
	}
	if departures != 1 {
		t.Fatalf("expected exactly one departure, got %d", departures)
	}
	ac := st.Fleet[0]
	if ac.RouteID != "r1" || ac.Location != "AAA" || ac.FlightPlan == nil || ac.FlightPlan.Dest != "BBB" {
		t.Fatalf("unexpected aircraft after 10 ticks: %+v", ac)
	}
	// 1000.75 km at 840 km/h is 72 minutes; six minutes flown.
	if ac.TimerMin != 66 {
		t.Fatalf("timer = %d, want 66", ac.TimerMin)
	}
	if ac.RouteLegIndex != 1 {
		t.Fatalf("leg index = %d, want 1", ac.RouteLegIndex)
	}
	if st.Tick != 10 {
		t.Fatalf("tick = %d, want 10", st.Tick)
	}
	rt := st.Routes[0]
	if rt.LastTickRevenue <= 0 || rt.LastTickLoad != 1 || rt.LastTickProfit <= 0 {
		t.Fatalf("route actuals not updated: %+v", rt)
	}
}

func TestLandingStartsTurnaround(t *testing.T) {
	sim := testSim(&rand.Fixed{})
	ac := owned("a1", models.StatusActive)
	ac.State = models.AircraftFlying
	ac.TimerMin = 1
	ac.RouteID = "r1"
	ac.Location = "AAA"
	ac.FlightPlan = &models.FlightPlan{Origin: "AAA", Dest: "BBB", Passengers: 100}
	st := &models.GameState{Routes: []models.Route{directRoute()}, Fleet: []models.OwnedCraft{ac}}

	sim.Step(st)
	got := st.Fleet[0]
	if got.State != models.AircraftTurnaround || got.Location != "BBB" || got.FlightPlan != nil || got.TimerMin != 3 {
		t.Fatalf("unexpected state after landing: %+v", got)
	}
}

func TestNextLegResync(t *testing.T) {
	direct := directRoute()
	ac := owned("a1", models.StatusActive)
	ac.Location = "BBB"
	leg, ok := nextLeg(&ac, &direct)
	if !ok || leg.Origin != "BBB" || leg.Dest != "AAA" || ac.RouteLegIndex != 0 {
		t.Fatalf("direct resync: leg %+v index %d", leg, ac.RouteLegIndex)
	}

	ac.Location = "ZZZ"
	ac.RouteLegIndex = 1
	leg, _ = nextLeg(&ac, &direct)
	if leg.Origin != "AAA" {
		t.Fatalf("unknown location should fall back to the first leg, got %+v", leg)
	}

	oneStop := models.Route{ID: "r2", From: "AAA", To: "BBB", Via: "CCC", AircraftID: "A320"}
	ac.Location = "CCC"
	ac.RouteLegIndex = 1
	leg, _ = nextLeg(&ac, &oneStop)
	if leg.Origin != "CCC" || leg.Dest != "BBB" {
		t.Fatalf("stopover outbound: got %+v", leg)
	}
	ac.RouteLegIndex = 3
	leg, _ = nextLeg(&ac, &oneStop)
	if leg.Origin != "CCC" || leg.Dest != "AAA" || ac.RouteLegIndex != 0 {
		t.Fatalf("stopover return: got %+v index %d", leg, ac.RouteLegIndex)
	}
}

func TestAssignRouteBalances(t *testing.T) {
	r1 := directRoute()
	r2 := directRoute()
	r2.ID, r2.To = "r2", "CCC"
	busy := owned("a1", models.StatusActive)
	busy.RouteID = "r1"
	fresh := owned("a2", models.StatusActive)
	st := &models.GameState{Routes: []models.Route{r1, r2}, Fleet: []models.OwnedCraft{busy, fresh}}

	rt := assignRoute(st, &st.Fleet[1])
	if rt == nil || rt.ID != "r2" || st.Fleet[1].RouteID != "r2" {
		t.Fatalf("expected r2, got %+v", rt)
	}

	st.Fleet[0].RouteID = "gone"
	rt = assignRoute(st, &st.Fleet[0])
	if rt == nil || rt.ID != "r1" {
		t.Fatalf("stale assignment should move to the emptier route r1, got %+v", rt)
	}
}

func TestDegenerateLegStaysIdle(t *testing.T) {
	sim := testSim(&rand.Fixed{})
	rt := directRoute()
	rt.To = "NOPE"
	ac := owned("a1", models.StatusActive)
	ac.State = models.AircraftTurnaround
	ac.TimerMin = 1
	st := &models.GameState{Routes: []models.Route{rt}, Fleet: []models.OwnedCraft{ac}}

	res := sim.Step(st)
	if res.Flights != 0 || res.Delta != 0 || st.Fleet[0].State != models.AircraftIdle {
		t.Fatalf("degenerate leg should not fly: %+v %+v", res, st.Fleet[0])
	}
}

func TestGroundedAtZeroCondition(t *testing.T) {
	sim := testSim(&rand.Fixed{Values: []float64{0.99}})
	ac := owned("a1", models.StatusActive)
	ac.Condition = 0.04
	st := &models.GameState{Fleet: []models.OwnedCraft{ac}}

	res := sim.Step(st)
	got := st.Fleet[0]
	if got.Condition != 0 || got.Status != models.StatusGrounded {
		t.Fatalf("expected grounded at zero condition, got %+v", got)
	}
	if len(res.Events) != 1 || !strings.Contains(res.Events[0], "grounded") {
		t.Fatalf("expected grounded event, got %v", res.Events)
	}

	sim.Step(st)
	if st.Fleet[0].Status != models.StatusGrounded || st.Fleet[0].Condition != 0 {
		t.Fatalf("grounded aircraft must stay grounded: %+v", st.Fleet[0])
	}
}

func TestAutomaticMaintenance(t *testing.T) {
	// 0.1 is under the 0.2 chance at condition 10; 0.5 picks four ticks.
	sim := testSim(&rand.Fixed{Values: []float64{0.1, 0.5}})
	ac := owned("a1", models.StatusActive)
	ac.Condition = 10.05
	st := &models.GameState{Fleet: []models.OwnedCraft{ac}}

	sim.Step(st)
	got := st.Fleet[0]
	if got.Status != models.StatusMaintenance || got.AvailableIn != 4 {
		t.Fatalf("expected 4 ticks of maintenance, got %+v", got)
	}
	for i := 0; i < 4; i++ {
		sim.Step(st)
	}
	got = st.Fleet[0]
	if got.Status != models.StatusActive || got.Condition < 99 || got.AvailableIn != 0 {
		t.Fatalf("maintenance should finish and restore condition, got %+v", got)
	}
}

func TestDeliveryAndLease(t *testing.T) {
	sim := testSim(&rand.Fixed{})
	ac := owned("a1", models.StatusDelivering)
	ac.AvailableIn = 2
	ac.OwnershipType = models.OwnershipLeased
	ac.MonthlyCost = 1000
	st := &models.GameState{Cash: 5000, Fleet: []models.OwnedCraft{ac}}

	res := sim.Step(st)
	if st.Fleet[0].Status != models.StatusDelivering || res.Lease != 1000 || st.Cash != 4000 {
		t.Fatalf("tick 1: %+v cash %.0f", st.Fleet[0], st.Cash)
	}
	res = sim.Step(st)
	if st.Fleet[0].Status != models.StatusActive || st.Fleet[0].State != models.AircraftIdle {
		t.Fatalf("expected delivery after two ticks, got %+v", st.Fleet[0])
	}
	if len(res.Events) == 0 || !strings.HasSuffix(res.Events[0], "delivered") {
		t.Fatalf("expected delivered event, got %v", res.Events)
	}
	if st.LastCashDelta != -1000 {
		t.Fatalf("lease should be charged every tick, delta %.0f", st.LastCashDelta)
	}
}

func TestConditionStaysInRange(t *testing.T) {
	sim := testSim(rand.New(42))
	rt := directRoute()
	rt.BlockMinutes = 960
	st := &models.GameState{
		Cash:   1_000_000,
		Routes: []models.Route{rt},
		Fleet:  []models.OwnedCraft{owned("a1", models.StatusActive), owned("a2", models.StatusActive)},
	}
	RecalcUtilization(st)
	for i := 0; i < 600; i++ {
		sim.Step(st)
		for _, ac := range st.Fleet {
			if ac.Condition < 0 || ac.Condition > 100 {
				t.Fatalf("tick %d: condition %.2f out of range", st.Tick, ac.Condition)
			}
			if ac.Condition == 0 && ac.Status != models.StatusGrounded {
				t.Fatalf("tick %d: zero condition but status %s", st.Tick, ac.Status)
			}
			if ac.TimerMin < 0 || ac.AvailableIn < 0 {
				t.Fatalf("tick %d: negative timer %+v", st.Tick, ac)
			}
		}
		if len(st.RecentEvents) > models.MaxEvents {
			t.Fatalf("event log grew to %d", len(st.RecentEvents))
		}
	}
}

func TestRecalcUtilization(t *testing.T) {
	rt := directRoute()
	rt.BlockMinutes = 480
	rt.FrequencyPerDay = 2
	idle := owned("a3", models.StatusDelivering)
	st := &models.GameState{
		Routes: []models.Route{rt},
		Fleet:  []models.OwnedCraft{owned("a1", models.StatusActive), owned("a2", models.StatusActive), idle},
	}
	RecalcUtilization(st)
	for _, ac := range st.Fleet {
		if ac.Utilization != 50 {
			t.Fatalf("%s utilization = %.1f, want 50", ac.ID, ac.Utilization)
		}
	}

	st.Fleet = st.Fleet[:1]
	st.Routes[0].FrequencyPerDay = 4
	RecalcUtilization(st)
	if st.Fleet[0].Utilization != 100 {
		t.Fatalf("utilization should cap at 100, got %.1f", st.Fleet[0].Utilization)
	}
}

func TestMaintenanceCost(t *testing.T) {
	if got := MaintenanceCost(100); got != 5*75_000 {
		t.Fatalf("minimum charge = %.0f", got)
	}
	if got := MaintenanceCost(40); got != 60*75_000 {
		t.Fatalf("cost at 40%% = %.0f", got)
	}
}
