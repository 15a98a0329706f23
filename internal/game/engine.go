package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"airline_ops/internal/capacity"
	"airline_ops/internal/catalog"
	"airline_ops/internal/demand"
	apperrors "airline_ops/internal/errors"
	"airline_ops/internal/fleet"
	"airline_ops/internal/models"
	"airline_ops/internal/rand"
	"airline_ops/internal/routes"

	"github.com/google/uuid"
)

const (
	defaultSavePath        = "data/savegame.json"
	manualMaintenanceTicks = 3
	leaseUpfrontShare      = 0.02
	leasePerTickShare      = 0.01
)

// Engine owns simulation state and logic. Every operation on the game
// state holds the state lock for its full duration.
type Engine struct {
	mu      sync.Mutex
	state   models.GameState
	catalog *catalog.Catalog
	builder *routes.Builder
	sim     *fleet.Sim

	// runMu serializes StartSim, PauseSim and SetSpeed. It is always taken
	// before mu, never after.
	runMu sync.Mutex
	sched scheduler

	savePath string
	sinks    []Sink
	subs     subscribers
	logger   *slog.Logger
}

// NewEngine wires the demand model, route builder and fleet state machine
// to one random source.
func NewEngine(cat *catalog.Catalog, src rand.Source) *Engine {
	dm := demand.New(src)
	return &Engine{
		state:    models.GameState{Speed: 1, DemandVariability: demand.DefaultVariability, RecentEvents: []string{}},
		catalog:  cat,
		builder:  routes.NewBuilder(cat, dm),
		sim:      fleet.New(cat, dm, src),
		savePath: defaultSavePath,
		logger:   slog.With("component", "engine"),
	}
}

// SetSavePath configures where AdvanceTick writes the save file. An empty
// path disables the per-tick save.
func (e *Engine) SetSavePath(path string) {
	e.mu.Lock()
	e.savePath = path
	e.mu.Unlock()
}

func (e *Engine) SetLogger(l *slog.Logger) {
	e.logger = l.With("component", "engine")
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// SetState replaces the current game state.
func (e *Engine) SetState(st models.GameState) {
	e.mu.Lock()
	e.state = st.Clone()
	if e.state.RecentEvents == nil {
		e.state.RecentEvents = []string{}
	}
	e.mu.Unlock()
}

// NewGame resets to a fresh game with cash and the starter fleet.
func (e *Engine) NewGame(cash, variability float64) {
	if variability <= 0 {
		variability = demand.DefaultVariability
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = models.GameState{
		Cash:              cash,
		Speed:             1,
		DemandVariability: variability,
		RecentEvents:      []string{},
	}
	e.seedFleetLocked()
}

// State returns a copy of the game state.
func (e *Engine) State() models.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// SeedFleet replaces the fleet with one active, owned unit of each starter
// template present in the catalog.
func (e *Engine) SeedFleet() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seedFleetLocked()
}

func (e *Engine) seedFleetLocked() {
	fleetList := make([]models.OwnedCraft, 0, len(catalog.StarterTemplates))
	for _, id := range catalog.StarterTemplates {
		tpl, ok := e.catalog.Template(id)
		if !ok {
			continue
		}
		ac := newCraft(tpl, tpl.ID+"-1")
		ac.Status = models.StatusActive
		fleetList = append(fleetList, ac)
	}
	e.state.Fleet = fleetList
}

func newCraft(tpl models.Aircraft, id string) models.OwnedCraft {
	return models.OwnedCraft{
		ID:            id,
		TemplateID:    tpl.ID,
		Name:          tpl.Name,
		Role:          tpl.Role,
		RangeKm:       tpl.RangeKm,
		Seats:         tpl.Seats,
		CruiseKmh:     tpl.CruiseKmh,
		FuelCost:      tpl.FuelCost,
		TurnaroundMin: tpl.TurnaroundMin,
		Condition:     100,
		OwnershipType: models.OwnershipOwned,
		State:         models.AircraftIdle,
	}
}

// BuildRoute prices a route without committing it.
func (e *Engine) BuildRoute(req routes.Request) (models.Route, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Build(req, e.state.DemandVariability)
}

// ValidateCapacity checks route against the committed network.
func (e *Engine) ValidateCapacity(route models.Route) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return capacity.Validate(route, e.state.Routes, e.state.Fleet, e.catalog)
}

// MarketExists reports whether a route already links from and to in
// either direction.
func (e *Engine) MarketExists(from, to string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return capacity.MarketExists(e.state.Routes, from, to)
}

// AddRoute appends a new route and refreshes utilization.
func (e *Engine) AddRoute(route models.Route) models.Route {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addRouteLocked(route)
}

func (e *Engine) addRouteLocked(route models.Route) models.Route {
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	e.state.Routes = append(e.state.Routes, route)
	e.state.AddEvent(fmt.Sprintf("Route %s-%s created", strings.ToUpper(route.From), strings.ToUpper(route.To)))
	fleet.RecalcUtilization(&e.state)
	e.logger.Info("Route created",
		"route_id", route.ID,
		"from", route.From,
		"to", route.To,
		"via", route.Via,
		"aircraft", route.AircraftID,
		"frequency", route.FrequencyPerDay)
	return route
}

// CreateRoute builds, checks and commits a route in one step, so two
// callers cannot both pass validation against the same network.
func (e *Engine) CreateRoute(req routes.Request) (models.Route, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	route, err := e.builder.Build(req, e.state.DemandVariability)
	if err != nil {
		return models.Route{}, err
	}
	if !req.OneWay && capacity.MarketExists(e.state.Routes, route.From, route.To) {
		return models.Route{}, apperrors.Newf(apperrors.CodeMarketExists,
			"route between %s and %s already exists", route.From, route.To)
	}
	if err := capacity.Validate(route, e.state.Routes, e.state.Fleet, e.catalog); err != nil {
		return models.Route{}, err
	}
	return e.addRouteLocked(route), nil
}

// PurchaseAircraft buys or leases a new aircraft. It arrives after the
// template's delivery lead time.
func (e *Engine) PurchaseAircraft(templateID, mode string) (models.OwnedCraft, error) {
	tpl, ok := e.catalog.Template(templateID)
	if !ok {
		return models.OwnedCraft{}, apperrors.Newf(apperrors.CodeUnknownAircraft, "unknown aircraft %s", templateID)
	}
	econ := e.catalog.Economics(tpl.ID)

	var upfront, perTick float64
	ownership := models.OwnershipOwned
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "buy":
		upfront = econ.Price
	case "lease":
		ownership = models.OwnershipLeased
		upfront = econ.Price * leaseUpfrontShare
		perTick = econ.Price * leasePerTickShare
	default:
		return models.OwnedCraft{}, apperrors.Newf(apperrors.CodeInvalidRequest, "mode must be buy or lease, got %q", mode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Cash < upfront {
		return models.OwnedCraft{}, apperrors.Newf(apperrors.CodeInsufficientCash,
			"insufficient cash: need %.0f, have %.0f", upfront, e.state.Cash)
	}
	e.state.Cash -= upfront

	craft := newCraft(tpl, tpl.ID+"-"+uuid.NewString()[:8])
	craft.Status = models.StatusDelivering
	craft.AvailableIn = econ.LeadTicks
	craft.OwnershipType = ownership
	craft.MonthlyCost = perTick
	e.state.Fleet = append(e.state.Fleet, craft)
	e.state.AddEvent(fmt.Sprintf("Ordered %s (%s)", craft.Name, craft.ID))
	e.logger.Info("Aircraft ordered",
		"aircraft_id", craft.ID,
		"template", tpl.ID,
		"ownership", ownership,
		"upfront", upfront,
		"lead_ticks", craft.AvailableIn)
	return craft, nil
}

// Maintain sends an aircraft to maintenance for ticks ticks (default 3).
// Condition is restored when the maintenance completes.
func (e *Engine) Maintain(ownedID string, ticks int) (models.OwnedCraft, error) {
	if ticks < 1 {
		ticks = manualMaintenanceTicks
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var craft *models.OwnedCraft
	for i := range e.state.Fleet {
		if strings.EqualFold(e.state.Fleet[i].ID, ownedID) {
			craft = &e.state.Fleet[i]
			break
		}
	}
	if craft == nil {
		return models.OwnedCraft{}, apperrors.Newf(apperrors.CodeUnknownAircraft, "unknown aircraft %s", ownedID)
	}
	if craft.Status == models.StatusDelivering {
		return models.OwnedCraft{}, apperrors.Newf(apperrors.CodeStillDelivering, "%s still delivering", craft.Name)
	}
	cost := fleet.MaintenanceCost(craft.Condition)
	if e.state.Cash < cost {
		return models.OwnedCraft{}, apperrors.Newf(apperrors.CodeInsufficientCash,
			"insufficient cash: maintenance costs %.0f", cost)
	}
	e.state.Cash -= cost
	fleet.BeginMaintenance(craft, ticks)
	fleet.RecalcUtilization(&e.state)
	e.state.AddEvent(fmt.Sprintf("%s sent to maintenance", craft.Name))
	e.logger.Info("Maintenance started", "aircraft_id", craft.ID, "ticks", ticks, "cost", cost)
	return *craft, nil
}

// RecalcUtilization recomputes utilization for each owned aircraft based on assigned routes.
func (e *Engine) RecalcUtilization() {
	e.mu.Lock()
	defer e.mu.Unlock()
	fleet.RecalcUtilization(&e.state)
}

// AnalyzeRoute ranks aircraft types for a market.
func (e *Engine) AnalyzeRoute(req routes.AnalysisRequest) ([]routes.AnalysisResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Analyze(req, e.state.DemandVariability)
}

// AdvanceTick runs one simulation step, saves the state and hands the
// result to the persistence sinks.
func (e *Engine) AdvanceTick() fleet.TickResult {
	res, _ := e.advance(context.Background())
	return res
}

// advance is AdvanceTick for the scheduler: it does nothing once ctx is
// cancelled, even if it was already waiting for the lock.
func (e *Engine) advance(ctx context.Context) (fleet.TickResult, bool) {
	e.mu.Lock()
	if ctx.Err() != nil {
		e.mu.Unlock()
		return fleet.TickResult{}, false
	}
	res := e.sim.Step(&e.state)
	if e.savePath != "" {
		if err := e.saveLocked(e.savePath); err != nil {
			e.logger.Warn("Failed to save state", "tick", res.Tick, "path", e.savePath, "error", err)
		}
	}
	snapshot := e.state.Clone()
	e.mu.Unlock()

	e.logger.Debug("Tick advanced",
		"tick", res.Tick,
		"delta", res.Delta,
		"flights", res.Flights,
		"cash", res.Cash)
	e.persist(snapshot, res)
	e.subs.publish(snapshot)
	return res, true
}

func clampSpeed(speed int) int {
	return min(max(speed, 1), 4)
}

func intervalForSpeed(speed int) time.Duration {
	switch speed {
	case 1:
		return 2 * time.Second
	case 2:
		return 1 * time.Second
	case 3:
		return 500 * time.Millisecond
	case 4:
		return 250 * time.Millisecond
	default:
		return 2 * time.Second
	}
}

// StartSim starts the tick loop at speed, replacing a loop that is
// already running. A speed of 0 keeps the current one.
func (e *Engine) StartSim(speed int) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	if speed <= 0 {
		speed = e.state.Speed
	}
	speed = clampSpeed(speed)
	e.state.Speed = speed
	e.state.IsRunning = true
	e.mu.Unlock()

	e.sched.start(intervalForSpeed(speed), e.advance)
	e.logger.Info("Simulation started", "speed", speed, "interval", intervalForSpeed(speed))
}

// PauseSim stops the tick loop. Pausing a paused game is a no-op.
func (e *Engine) PauseSim() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	// Stop first: the loop may be waiting on mu.
	stopped := e.sched.stop()
	e.mu.Lock()
	e.state.IsRunning = false
	e.mu.Unlock()
	if stopped {
		e.logger.Info("Simulation paused")
	}
}

// SetSpeed updates the simulation speed, restarting the loop at the new
// interval if it is running.
func (e *Engine) SetSpeed(speed int) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	speed = clampSpeed(speed)
	e.mu.Lock()
	e.state.Speed = speed
	running := e.state.IsRunning
	e.mu.Unlock()

	if running {
		e.sched.start(intervalForSpeed(speed), e.advance)
		e.logger.Info("Simulation speed changed", "speed", speed)
	}
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.sched.running()
}

// Close stops the tick loop and closes the persistence sinks.
func (e *Engine) Close() error {
	e.PauseSim()
	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()

	var firstErr error
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
