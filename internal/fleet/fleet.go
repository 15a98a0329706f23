// Package fleet advances owned aircraft through delivery, maintenance and
// their flight sub-states, one simulation tick at a time.
package fleet

import (
	"fmt"
	"strings"

	"airline_ops/internal/capacity"
	"airline_ops/internal/catalog"
	"airline_ops/internal/demand"
	"airline_ops/internal/models"
	"airline_ops/internal/rand"
)

// UtilizationEvery is how often, in ticks, utilization is recomputed.
const UtilizationEvery = 6

// Sim runs the per-aircraft state machine against a GameState. It holds no
// state of its own; callers serialize access to the GameState.
type Sim struct {
	Catalog *catalog.Catalog
	Demand  *demand.Model
	Rand    rand.Source
}

func New(cat *catalog.Catalog, dm *demand.Model, src rand.Source) *Sim {
	return &Sim{Catalog: cat, Demand: dm, Rand: src}
}

// TickResult summarises the cash movement of one Step.
type TickResult struct {
	Tick    int      `json:"tick"`
	Revenue float64  `json:"revenue"`
	Cost    float64  `json:"cost"`
	Lease   float64  `json:"lease"`
	Delta   float64  `json:"delta"`
	Cash    float64  `json:"cash"`
	Flights int      `json:"flights"`
	Events  []string `json:"events,omitempty"`
}

// Step advances st by one tick: flights depart and land, lease costs are
// charged, delivery and maintenance timers run down, active aircraft wear,
// and the tick counter moves on.
func (s *Sim) Step(st *models.GameState) TickResult {
	var res TickResult
	emit := func(msg string) {
		st.AddEvent(msg)
		res.Events = append(res.Events, msg)
	}

	for i := range st.Fleet {
		ac := &st.Fleet[i]
		if ac.Status != models.StatusActive {
			continue
		}
		if f, ok := s.advanceFlight(st, ac); ok {
			res.Revenue += f.revenue
			res.Cost += f.cost
			res.Flights++
		}
	}

	for _, ac := range st.Fleet {
		if ac.OwnershipType == models.OwnershipLeased && ac.MonthlyCost > 0 {
			res.Lease += ac.MonthlyCost
		}
	}
	res.Delta = res.Revenue - res.Cost - res.Lease
	st.Cash += res.Delta
	st.LastCashDelta = res.Delta

	s.advanceTimers(st, emit)
	s.applyWear(st, emit)

	st.Tick++
	if st.Tick%UtilizationEvery == 0 {
		RecalcUtilization(st)
	}
	res.Tick = st.Tick
	res.Cash = st.Cash
	return res
}

func (s *Sim) advanceTimers(st *models.GameState, emit func(string)) {
	for i := range st.Fleet {
		ac := &st.Fleet[i]
		if ac.Status != models.StatusDelivering && ac.Status != models.StatusMaintenance {
			continue
		}
		if ac.AvailableIn > 0 {
			ac.AvailableIn--
		}
		if ac.AvailableIn > 0 {
			continue
		}
		if ac.Status == models.StatusDelivering {
			emit(fmt.Sprintf("%s delivered", ac.Name))
		} else {
			ac.Condition = 100
			emit(fmt.Sprintf("%s maintenance complete", ac.Name))
		}
		ac.Status = models.StatusActive
		ac.State = models.AircraftIdle
		ac.TimerMin = 0
	}
}

func (s *Sim) applyWear(st *models.GameState, emit func(string)) {
	for i := range st.Fleet {
		ac := &st.Fleet[i]
		if ac.Status != models.StatusActive || ac.Condition <= 0 {
			continue
		}
		ac.Condition -= 0.05 + (ac.Utilization/100.0)*0.4
		if ac.Condition <= 0 {
			ac.Condition = 0
			ac.Status = models.StatusGrounded
			park(ac)
			emit(fmt.Sprintf("%s grounded, requires maintenance", ac.Name))
			continue
		}
		if ac.Condition < 50 {
			chance := ((50 - ac.Condition) / 50.0) * 0.25
			if s.Rand.Float64() < chance {
				BeginMaintenance(ac, 3+s.Rand.Intn(3))
				emit(fmt.Sprintf("%s pulled for maintenance", ac.Name))
			}
		}
	}
}

// BeginMaintenance takes ac out of service for ticks ticks (at least one).
func BeginMaintenance(ac *models.OwnedCraft, ticks int) {
	if ticks < 1 {
		ticks = 1
	}
	ac.Status = models.StatusMaintenance
	ac.AvailableIn = ticks
	park(ac)
}

// MaintenanceCost is the price of restoring an aircraft at condition.
func MaintenanceCost(condition float64) float64 {
	deficit := 100 - condition
	if deficit < 5 {
		deficit = 5
	}
	return deficit * 75_000
}

// park drops any flight in progress and leaves the aircraft idle where it is.
func park(ac *models.OwnedCraft) {
	ac.State = models.AircraftIdle
	ac.TimerMin = 0
	ac.FlightPlan = nil
}

// RecalcUtilization sets each aircraft's utilization to the share of its
// template's daily operating minutes that committed routes schedule.
func RecalcUtilization(st *models.GameState) {
	scheduled := capacity.ScheduledMinutes(st.Routes)
	active := make(map[string]int)
	for _, ac := range st.Fleet {
		if ac.Status == models.StatusActive {
			active[strings.ToUpper(ac.TemplateID)]++
		}
	}
	for i := range st.Fleet {
		ac := &st.Fleet[i]
		tpl := strings.ToUpper(ac.TemplateID)
		util := 0.0
		if n := active[tpl]; n > 0 {
			util = scheduled[tpl] / (capacity.OperatingMinutesPerDay * float64(n)) * 100
			if util > 100 {
				util = 100
			}
		}
		ac.Utilization = util
	}
}
