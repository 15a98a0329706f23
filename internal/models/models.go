package models

import "slices"

type Airport struct {
	ID          string  `json:"id"`
	Ident       string  `json:"ident"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	IATA        string  `json:"iata"`
	ICAO        string  `json:"icao"`
	RunwayM     int     `json:"runway_m"`
	SlotsPerDay int     `json:"slots_per_day"`
	LandingFee  float64 `json:"landing_fee"`
	Curfew      bool    `json:"curfew"`
	CurfewStart int     `json:"curfew_start_hour"`
	CurfewEnd   int     `json:"curfew_end_hour"`
}

// Aircraft is a catalog template. Owned units copy its performance fields.
type Aircraft struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	RangeKm       float64 `json:"range_km"`
	Seats         int     `json:"seats"`
	CruiseKmh     float64 `json:"cruise_kmh"`
	FuelCost      float64 `json:"fuel_cost_per_km"`
	TurnaroundMin int     `json:"turnaround_min"`
	Crew          int     `json:"crew,omitempty"`
	CargoVolumeM3 float64 `json:"cargo_volume_m3,omitempty"`
	MaxPayloadKg  float64 `json:"max_payload_kg,omitempty"`
	IcaoType      string  `json:"icao_type,omitempty"`
}

type Route struct {
	ID                string  `json:"id"`
	From              string  `json:"from"`
	To                string  `json:"to"`
	Via               string  `json:"via,omitempty"`
	AircraftID        string  `json:"aircraft_id"`
	FrequencyPerDay   int     `json:"frequency_per_day"`
	OneWay            bool    `json:"one_way,omitempty"`
	EstimatedDemand   int     `json:"estimated_demand"`
	PricePerSeat      float64 `json:"price_per_seat"`
	UserPrice         float64 `json:"user_price"`
	EstRevenueTick    float64 `json:"estimated_revenue_tick"`
	EstCostTick       float64 `json:"estimated_cost_tick"`
	LoadFactor        float64 `json:"load_factor"`
	RevenuePerLeg     float64 `json:"revenue_per_leg"`
	CostPerLeg        float64 `json:"cost_per_leg"`
	LandingFeesPerLeg float64 `json:"landing_fees_per_leg"`
	ProfitPerTick     float64 `json:"profit_per_tick"`
	SeatsSoldPerLeg   int     `json:"seats_sold_per_leg"`
	BlockMinutes      float64 `json:"block_minutes"`
	Legs              int     `json:"legs"`
	CurfewBlocked     bool    `json:"curfew_blocked"`
	LastTickRevenue   float64 `json:"last_tick_revenue"`
	LastTickLoad      float64 `json:"last_tick_load"`
	LastTickProfit    float64 `json:"last_tick_profit"`
}

// Airports returns the idents the route touches, origin first.
func (r Route) Airports() []string {
	if r.Via == "" {
		return []string{r.From, r.To}
	}
	return []string{r.From, r.To, r.Via}
}

type GameState struct {
	Cash              float64      `json:"cash"`
	LastCashDelta     float64      `json:"last_cash_delta"`
	Tick              int          `json:"tick"`
	IsRunning         bool         `json:"is_running"`
	Speed             int          `json:"speed"`
	DemandVariability float64      `json:"demand_variability"`
	RecentEvents      []string     `json:"recent_events"`
	Routes            []Route      `json:"routes"`
	Fleet             []OwnedCraft `json:"fleet"`
}

// MaxEvents bounds RecentEvents.
const MaxEvents = 20

// AddEvent appends msg to the recent event log, dropping the oldest entries
// past MaxEvents.
func (s *GameState) AddEvent(msg string) {
	if msg == "" {
		return
	}
	s.RecentEvents = append(s.RecentEvents, msg)
	if len(s.RecentEvents) > MaxEvents {
		s.RecentEvents = s.RecentEvents[len(s.RecentEvents)-MaxEvents:]
	}
}

// Clone returns a deep copy safe to hand out after the engine lock is released.
func (s GameState) Clone() GameState {
	out := s
	out.RecentEvents = slices.Clone(s.RecentEvents)
	out.Routes = slices.Clone(s.Routes)
	out.Fleet = make([]OwnedCraft, len(s.Fleet))
	for i, ac := range s.Fleet {
		if ac.FlightPlan != nil {
			plan := *ac.FlightPlan
			ac.FlightPlan = &plan
		}
		out.Fleet[i] = ac
	}
	if s.Fleet == nil {
		out.Fleet = nil
	}
	return out
}

// Status is the operational state of an owned aircraft.
type Status string

const (
	StatusDelivering  Status = "delivering"
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusGrounded    Status = "grounded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDelivering, StatusActive, StatusMaintenance, StatusGrounded:
		return true
	}
	return false
}

// AircraftState is the flight sub-state of an active aircraft.
type AircraftState string

const (
	AircraftIdle       AircraftState = "idle"
	AircraftTurnaround AircraftState = "turnaround"
	AircraftFlying     AircraftState = "flying"
)

func (s AircraftState) Valid() bool {
	switch s {
	case AircraftIdle, AircraftTurnaround, AircraftFlying:
		return true
	}
	return false
}

type Ownership string

const (
	OwnershipOwned  Ownership = "owned"
	OwnershipLeased Ownership = "leased"
)

type FlightPlan struct {
	Origin     string `json:"origin"`
	Dest       string `json:"dest"`
	Passengers int    `json:"passengers"`
}

// OwnedCraft represents a specific aircraft in the player's fleet
// (not just the catalog entry).
type OwnedCraft struct {
	ID            string        `json:"id"`
	TemplateID    string        `json:"template_id"`
	Name          string        `json:"name"`
	Role          string        `json:"role"`
	RangeKm       float64       `json:"range_km"`
	Seats         int           `json:"seats"`
	CruiseKmh     float64       `json:"cruise_kmh"`
	FuelCost      float64       `json:"fuel_cost_per_km"`
	TurnaroundMin int           `json:"turnaround_min"`
	Status        Status        `json:"status"`
	AvailableIn   int           `json:"available_in_ticks"`
	Utilization   float64       `json:"utilization_pct"`
	Condition     float64       `json:"condition_pct"`
	OwnershipType Ownership     `json:"ownership_type,omitempty"`
	MonthlyCost   float64       `json:"monthly_cost,omitempty"`
	State         AircraftState `json:"state"`
	Location      string        `json:"location"`
	TimerMin      int           `json:"timer_min"`
	FlightPlan    *FlightPlan   `json:"flight_plan,omitempty"`
	RouteID       string        `json:"route_id,omitempty"`
	RouteLegIndex int           `json:"route_leg_index,omitempty"`
}

// Template rebuilds the catalog view of an owned unit.
func (ac OwnedCraft) Template() Aircraft {
	return Aircraft{
		ID:            ac.TemplateID,
		Name:          ac.Name,
		Role:          ac.Role,
		RangeKm:       ac.RangeKm,
		Seats:         ac.Seats,
		CruiseKmh:     ac.CruiseKmh,
		FuelCost:      ac.FuelCost,
		TurnaroundMin: ac.TurnaroundMin,
	}
}
