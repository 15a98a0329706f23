package game

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"airline_ops/internal/catalog"
	apperrors "airline_ops/internal/errors"
	"airline_ops/internal/fleet"
	"airline_ops/internal/models"
	"airline_ops/internal/rand"
	"airline_ops/internal/routes"
	"airline_ops/internal/store"
)

func testCatalog() *catalog.Catalog {
	ap := func(ident string, lon float64) models.Airport {
		return models.Airport{Ident: ident, Type: "large_airport", Longitude: lon, RunwayM: 3200, SlotsPerDay: 200, LandingFee: 3500}
	}
	airports := []models.Airport{ap("AAA", 0), ap("BBB", 9), ap("CCC", 4.5)}
	aircraft := []models.Aircraft{
		{ID: "A320", Name: "Airbus A320", Role: "narrowbody", RangeKm: 6100, Seats: 180, CruiseKmh: 840, FuelCost: 3, TurnaroundMin: 45},
		{ID: "B737-800", Name: "Boeing 737-800", Role: "narrowbody", RangeKm: 5400, Seats: 189, CruiseKmh: 842, FuelCost: 3.1, TurnaroundMin: 45},
		{ID: "E190", Name: "Embraer E190", Role: "regional", RangeKm: 4500, Seats: 100, CruiseKmh: 820, FuelCost: 2.2},
	}
	return catalog.New(airports, aircraft)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(testCatalog(), &rand.Fixed{Values: []float64{0.5}})
	e.SetSavePath(filepath.Join(t.TempDir(), "savegame.json"))
	e.NewGame(500_000_000, 0)
	return e
}

func directRequest() routes.Request {
	return routes.Request{From: "AAA", To: "BBB", AircraftID: "A320", Frequency: 1}
}

func TestNewGameSeedsStarterFleet(t *testing.T) {
	e := newTestEngine(t)
	st := e.State()
	if st.Cash != 500_000_000 || st.Speed != 1 || st.DemandVariability != 0.08 {
		t.Fatalf("unexpected new game %+v", st)
	}
	if len(st.Fleet) != 3 {
		t.Fatalf("expected three starter aircraft, got %d", len(st.Fleet))
	}
	for _, ac := range st.Fleet {
		if ac.Status != models.StatusActive || ac.Condition != 100 || ac.OwnershipType != models.OwnershipOwned {
			t.Fatalf("unexpected starter aircraft %+v", ac)
		}
	}
}

func TestCreateRoute(t *testing.T) {
	e := newTestEngine(t)
	rt, err := e.CreateRoute(directRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rt.ID == "" || rt.ProfitPerTick <= 0 || rt.CurfewBlocked {
		t.Fatalf("unexpected route %+v", rt)
	}
	st := e.State()
	if len(st.Routes) != 1 || st.RecentEvents[len(st.RecentEvents)-1] != "Route AAA-BBB created" {
		t.Fatalf("route not committed: %+v", st)
	}
	if st.Fleet[0].Utilization <= 0 {
		t.Fatalf("utilization should be recomputed on add")
	}
	if !e.MarketExists("AAA", "BBB") || !e.MarketExists("BBB", "AAA") {
		t.Fatalf("market should exist in both directions")
	}

	reverse := routes.Request{From: "BBB", To: "AAA", AircraftID: "A320", Frequency: 1}
	if _, err := e.CreateRoute(reverse); !errors.Is(err, apperrors.ErrMarketExists) {
		t.Fatalf("expected market exists, got %v", err)
	}
	reverse.OneWay = true
	if _, err := e.CreateRoute(reverse); err != nil {
		t.Fatalf("one-way route should skip the market rule: %v", err)
	}
}

func TestFailedValidationLeavesStateUnchanged(t *testing.T) {
	e := newTestEngine(t)
	before := e.State()

	big := routes.Request{From: "AAA", To: "BBB", AircraftID: "A320", Frequency: 10}
	if _, err := e.CreateRoute(big); !errors.Is(err, apperrors.ErrFleetHoursExceeded) {
		t.Fatalf("expected fleet hours error, got %v", err)
	}
	if _, err := e.CreateRoute(routes.Request{From: "AAA", To: "ZZZ", AircraftID: "A320"}); !errors.Is(err, apperrors.ErrAirportNotFound) {
		t.Fatalf("expected airport not found, got %v", err)
	}
	if _, err := e.CreateRoute(routes.Request{From: "AAA", To: "BBB", AircraftID: "B747-8F"}); !errors.Is(err, apperrors.ErrAircraftNotFound) {
		t.Fatalf("expected aircraft not found, got %v", err)
	}
	if after := e.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed after failed creates")
	}
}

func TestBuildValidateAdd(t *testing.T) {
	e := newTestEngine(t)
	rt, err := e.BuildRoute(directRequest())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(e.State().Routes) != 0 {
		t.Fatalf("BuildRoute must not commit")
	}
	if err := e.ValidateCapacity(rt); err != nil {
		t.Fatalf("validate: %v", err)
	}
	added := e.AddRoute(rt)
	if added.ID != rt.ID || len(e.State().Routes) != 1 {
		t.Fatalf("AddRoute did not commit %+v", added)
	}
}

func TestConcurrentCreateRoute(t *testing.T) {
	e := newTestEngine(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateRoute(directRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, apperrors.ErrMarketExists) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || len(e.State().Routes) != 1 {
		t.Fatalf("exactly one creator should win, got %d", ok)
	}
}

func TestPurchaseAircraft(t *testing.T) {
	e := newTestEngine(t)

	bought, err := e.PurchaseAircraft("a320", "buy")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if bought.Status != models.StatusDelivering || bought.AvailableIn != 8 || bought.OwnershipType != models.OwnershipOwned {
		t.Fatalf("unexpected purchase %+v", bought)
	}
	if cash := e.State().Cash; cash != 500_000_000-98_000_000 {
		t.Fatalf("cash after buy = %.0f", cash)
	}

	leased, err := e.PurchaseAircraft("E190", "lease")
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if leased.OwnershipType != models.OwnershipLeased || leased.MonthlyCost != 520_000 {
		t.Fatalf("unexpected lease %+v", leased)
	}
	if leased.ID == bought.ID {
		t.Fatalf("ids must be unique")
	}

	if _, err := e.PurchaseAircraft("NOPE", "buy"); !errors.Is(err, apperrors.ErrUnknownAircraft) {
		t.Fatalf("expected unknown aircraft, got %v", err)
	}
	if _, err := e.PurchaseAircraft("A320", "rent"); apperrors.GetCode(err) != apperrors.CodeInvalidRequest {
		t.Fatalf("expected invalid mode, got %v", err)
	}

	e.mu.Lock()
	e.state.Cash = 10
	e.mu.Unlock()
	before := e.State()
	if _, err := e.PurchaseAircraft("A320", "buy"); !errors.Is(err, apperrors.ErrInsufficientCash) {
		t.Fatalf("expected insufficient cash, got %v", err)
	}
	if after := e.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("failed purchase changed state")
	}
}

func TestMaintain(t *testing.T) {
	e := newTestEngine(t)
	order, err := e.PurchaseAircraft("A320", "buy")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := e.Maintain(order.ID, 2); !errors.Is(err, apperrors.ErrStillDelivering) {
		t.Fatalf("expected still delivering, got %v", err)
	}
	if _, err := e.Maintain("missing", 2); !errors.Is(err, apperrors.ErrUnknownAircraft) {
		t.Fatalf("expected unknown aircraft, got %v", err)
	}

	e.mu.Lock()
	e.state.Fleet[0].Condition = 40
	cash := e.state.Cash
	e.mu.Unlock()

	ac, err := e.Maintain("a320-1", 2)
	if err != nil {
		t.Fatalf("maintain: %v", err)
	}
	if ac.Status != models.StatusMaintenance || ac.AvailableIn != 2 {
		t.Fatalf("unexpected maintenance %+v", ac)
	}
	if got := e.State().Cash; got != cash-60*75_000 {
		t.Fatalf("maintenance charge wrong: %.0f", cash-got)
	}
	e.AdvanceTick()
	e.AdvanceTick()
	restored := e.State().Fleet[0]
	if restored.Status != models.StatusActive || restored.Condition < 99 {
		t.Fatalf("maintenance should restore the aircraft, got %+v", restored)
	}

	e.mu.Lock()
	e.state.Cash = 0
	e.mu.Unlock()
	if _, err := e.Maintain("A320-1", 1); !errors.Is(err, apperrors.ErrInsufficientCash) {
		t.Fatalf("expected insufficient cash, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.CreateRoute(directRequest()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.PurchaseAircraft("E190", "lease"); err != nil {
		t.Fatalf("lease: %v", err)
	}
	for i := 0; i < 12; i++ {
		e.AdvanceTick()
	}
	path := filepath.Join(t.TempDir(), "round.json")
	if err := e.SaveState(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	other := NewEngine(testCatalog(), &rand.Fixed{})
	if err := other.LoadState(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	want, got := e.State(), other.State()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestTemplateWithoutTurnaroundSurvivesReload(t *testing.T) {
	e := newTestEngine(t)
	var before models.OwnedCraft
	for _, ac := range e.State().Fleet {
		if ac.TemplateID == "E190" {
			before = ac
		}
	}
	if before.TurnaroundMin != 30 {
		t.Fatalf("E190 turnaround = %d, want the catalog default 30", before.TurnaroundMin)
	}
	if err := e.SaveState(""); err != nil {
		t.Fatalf("save: %v", err)
	}
	e.mu.Lock()
	path := e.savePath
	e.mu.Unlock()

	other := NewEngine(testCatalog(), &rand.Fixed{})
	if err := other.LoadState(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, ac := range other.State().Fleet {
		if ac.ID == before.ID && ac.TurnaroundMin != before.TurnaroundMin {
			t.Fatalf("turnaround changed on reload: %d -> %d", before.TurnaroundMin, ac.TurnaroundMin)
		}
	}
}

func writeSave(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "savegame.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRunningSaveResumes(t *testing.T) {
	path := writeSave(t, `{"cash": 100, "tick": 4, "is_running": true, "speed": 4}`)
	e := NewEngine(testCatalog(), &rand.Fixed{})
	e.SetSavePath(path)
	defer e.Close()
	if err := e.LoadState(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !e.Running() || !e.State().IsRunning {
		t.Fatalf("running save should resume: Running=%v IsRunning=%v", e.Running(), e.State().IsRunning)
	}
	waitForTick(t, e, 5)

	e.PauseSim()
	if e.Running() || e.State().IsRunning {
		t.Fatalf("pause should stop the resumed loop")
	}
}

func TestLoadPausedSaveStaysPaused(t *testing.T) {
	e := newTestEngine(t)
	e.StartSim(4)
	path := writeSave(t, `{"cash": 100, "tick": 4, "is_running": false, "speed": 9}`)
	if err := e.LoadState(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	st := e.State()
	if e.Running() || st.IsRunning {
		t.Fatalf("paused save should stop the loop: Running=%v IsRunning=%v", e.Running(), st.IsRunning)
	}
	if st.Speed != 4 {
		t.Fatalf("speed = %d, want clamped 4", st.Speed)
	}
	time.Sleep(600 * time.Millisecond)
	if got := e.State().Tick; got != 4 {
		t.Fatalf("tick advanced while paused: %d", got)
	}
}

func TestLoadLatestFallsBackToArchive(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 3; i++ {
		e.AdvanceTick()
	}
	archive := store.NewArchive(t.TempDir(), 1)
	if _, err := archive.Store(e.State()); err != nil {
		t.Fatalf("archive: %v", err)
	}

	other := NewEngine(testCatalog(), &rand.Fixed{})
	missing := filepath.Join(t.TempDir(), "none.json")
	if err := other.LoadLatest(missing, archive); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing save should be reported, got %v", err)
	}

	corrupt := writeSave(t, `{"cash": `)
	if err := other.LoadLatest(corrupt, nil); err == nil {
		t.Fatalf("corrupt save without archive should fail")
	}
	if err := other.LoadLatest(corrupt, archive); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	want, got := e.State(), other.State()
	if got.Tick != 3 || got.Cash != want.Cash || len(got.Fleet) != len(want.Fleet) {
		t.Fatalf("archive restore = tick %d cash %v, want tick 3 cash %v", got.Tick, got.Cash, want.Cash)
	}
}

type closingSink struct {
	recordingSink
	closed bool
}

func (s *closingSink) Close() error {
	s.closed = true
	return nil
}

func TestCloseClosesSinksWhileAdding(t *testing.T) {
	e := newTestEngine(t)
	first := &closingSink{}
	e.AddSink(first)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			e.AddSink(&recordingSink{})
		}
	}()
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
	if !first.closed {
		t.Fatalf("Close should close sinks that implement io.Closer")
	}
}

func TestAdvanceTickWritesSave(t *testing.T) {
	e := newTestEngine(t)
	e.AdvanceTick()
	e.mu.Lock()
	path := e.savePath
	e.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("tick should save state: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary save left behind")
	}
}

func TestLoadStateDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	old := `{"cash": 100, "tick": 4, "fleet": [
		{"id": "A320-1", "template_id": "A320", "status": "active", "condition_pct": 80},
		{"id": "E190-1", "template_id": "E190", "status": "active", "condition_pct": 80}
	]}`
	if err := os.WriteFile(path, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(testCatalog(), &rand.Fixed{})
	if err := e.LoadState(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	st := e.State()
	if st.DemandVariability != 0.08 || st.RecentEvents == nil || st.Speed != 1 {
		t.Fatalf("state defaults missing: %+v", st)
	}
	a320, e190 := st.Fleet[0], st.Fleet[1]
	if a320.OwnershipType != models.OwnershipOwned || a320.State != models.AircraftIdle || a320.TurnaroundMin != 45 {
		t.Fatalf("unexpected defaults %+v", a320)
	}
	// The E190 template takes the catalog default.
	if e190.TurnaroundMin != 30 {
		t.Fatalf("turnaround fallback = %d, want 30", e190.TurnaroundMin)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	ticks []int
	err   error
}

func (s *recordingSink) Persist(_ context.Context, _ models.GameState, res fleet.TickResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, res.Tick)
	return s.err
}

func TestSinksAndSubscribers(t *testing.T) {
	e := newTestEngine(t)
	failing := &recordingSink{err: errors.New("disk full")}
	ok := &recordingSink{}
	e.AddSink(failing)
	e.AddSink(ok)

	updates, cancel := e.Subscribe()
	defer cancel()

	e.AdvanceTick()
	e.AdvanceTick()
	if !reflect.DeepEqual(ok.ticks, []int{1, 2}) || !reflect.DeepEqual(failing.ticks, []int{1, 2}) {
		t.Fatalf("sinks should see every tick, got %v and %v", ok.ticks, failing.ticks)
	}
	if e.State().Tick != 2 {
		t.Fatalf("a failing sink must not stop the game")
	}
	select {
	case msg := <-updates:
		if len(msg) == 0 {
			t.Fatalf("empty snapshot")
		}
	default:
		t.Fatalf("subscriber got no snapshot")
	}
	cancel()
	if _, open := <-updates; open {
		t.Fatalf("cancel should close the channel")
	}
}

func waitForTick(t *testing.T, e *Engine, atLeast int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if e.State().Tick >= atLeast {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("tick never reached %d", atLeast)
}

func TestSchedulerStartSpeedPause(t *testing.T) {
	e := newTestEngine(t)
	e.StartSim(4)
	if !e.Running() || !e.State().IsRunning || e.State().Speed != 4 {
		t.Fatalf("simulation should be running at speed 4")
	}
	waitForTick(t, e, 1)

	e.SetSpeed(3)
	if !e.Running() || e.State().Speed != 3 {
		t.Fatalf("speed change should keep the loop running")
	}
	e.StartSim(4)
	waitForTick(t, e, e.State().Tick+1)

	e.PauseSim()
	e.PauseSim()
	if e.Running() || e.State().IsRunning {
		t.Fatalf("pause should stop the loop")
	}
	paused := e.State().Tick
	time.Sleep(600 * time.Millisecond)
	if got := e.State().Tick; got != paused {
		t.Fatalf("tick advanced after pause: %d -> %d", paused, got)
	}

	e.SetSpeed(9)
	if e.Running() || e.State().Speed != 4 {
		t.Fatalf("SetSpeed should clamp and not start a paused game")
	}
}

func TestIntervalForSpeed(t *testing.T) {
	want := map[int]time.Duration{1: 2 * time.Second, 2: time.Second, 3: 500 * time.Millisecond, 4: 250 * time.Millisecond}
	for speed, d := range want {
		if got := intervalForSpeed(speed); got != d {
			t.Fatalf("speed %d: %v, want %v", speed, got, d)
		}
	}
}
