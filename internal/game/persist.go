package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"airline_ops/internal/catalog"
	"airline_ops/internal/demand"
	"airline_ops/internal/fleet"
	"airline_ops/internal/models"
	"airline_ops/internal/store"
)

const sinkTimeout = 5 * time.Second

// Sink receives a copy of the state after every tick. Failures are logged
// and never stop the simulation.
type Sink interface {
	Persist(ctx context.Context, st models.GameState, res fleet.TickResult) error
}

// AddSink registers s to run after each tick, outside the state lock.
func (e *Engine) AddSink(s Sink) {
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

func (e *Engine) persist(st models.GameState, res fleet.TickResult) {
	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()

	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := s.Persist(ctx, st, res); err != nil {
			e.logger.Warn("Persistence sink failed", "sink", fmt.Sprintf("%T", s), "tick", res.Tick, "error", err)
		}
		cancel()
	}
}

// SaveState persists the current state to path, or to the configured save
// path when path is empty.
func (e *Engine) SaveState(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if path == "" {
		path = e.savePath
	}
	return e.saveLocked(path)
}

func (e *Engine) saveLocked(path string) error {
	if err := store.SaveJSON(path, e.state); err != nil {
		return fmt.Errorf("save state to %s: %w", path, err)
	}
	return nil
}

// LoadState replaces the state with the save at path. Fields older saves
// lack are defaulted. A save taken while running resumes the tick loop at
// its saved speed; otherwise the simulation is left paused.
func (e *Engine) LoadState(path string) error {
	if path == "" {
		e.mu.Lock()
		path = e.savePath
		e.mu.Unlock()
	}
	st, err := store.LoadJSON(path)
	if err != nil {
		return err
	}
	return e.restore(st)
}

// LoadArchive restores a msgpack archive written by store.Archive.
func (e *Engine) LoadArchive(path string) error {
	st, err := store.LoadArchive(path)
	if err != nil {
		return err
	}
	return e.restore(st)
}

// LoadLatest loads the JSON save at path and falls back to the newest
// archive when the save exists but cannot be read. A missing save is
// returned as is so the caller can start a new game.
func (e *Engine) LoadLatest(path string, archive *store.Archive) error {
	err := e.LoadState(path)
	if err == nil || errors.Is(err, os.ErrNotExist) || archive == nil {
		return err
	}
	paths, listErr := archive.List()
	if listErr != nil || len(paths) == 0 {
		return err
	}
	latest := paths[len(paths)-1]
	if archErr := e.LoadArchive(latest); archErr != nil {
		return fmt.Errorf("%w (archive %s: %v)", err, latest, archErr)
	}
	e.logger.Warn("Save unreadable, restored from archive", "path", path, "archive", latest, "error", err)
	return nil
}

func (e *Engine) restore(st models.GameState) error {
	e.normalize(&st)

	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.pauseLocked()

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	e.logger.Info("State loaded", "tick", st.Tick, "routes", len(st.Routes), "fleet", len(st.Fleet))

	if st.IsRunning {
		e.sched.start(intervalForSpeed(st.Speed), e.advance)
		e.logger.Info("Simulation resumed", "speed", st.Speed)
	}
	return nil
}

func (e *Engine) normalize(st *models.GameState) {
	for i := range st.Fleet {
		ac := &st.Fleet[i]
		if ac.OwnershipType == "" {
			ac.OwnershipType = models.OwnershipOwned
		}
		if !ac.State.Valid() {
			ac.State = models.AircraftIdle
		}
		if !ac.Status.Valid() {
			ac.Status = models.StatusActive
		}
		// Older saves predate per-unit turnaround.
		if ac.TurnaroundMin <= 0 {
			if tpl, ok := e.catalog.Template(ac.TemplateID); ok {
				ac.TurnaroundMin = tpl.TurnaroundMin
			} else {
				ac.TurnaroundMin = catalog.DefaultTurnaroundMin
			}
		}
		ac.Condition = min(max(ac.Condition, 0), 100)
		ac.TimerMin = max(ac.TimerMin, 0)
		ac.AvailableIn = max(ac.AvailableIn, 0)
	}
	if st.DemandVariability <= 0 {
		st.DemandVariability = demand.DefaultVariability
	}
	st.Speed = clampSpeed(st.Speed)
	if st.RecentEvents == nil {
		st.RecentEvents = []string{}
	}
}

// subscribers fans state snapshots out to live viewers. A slow viewer
// only ever sees the newest snapshot.
type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan []byte
}

// Subscribe returns a channel of JSON state snapshots, one per tick, and a
// function that ends the subscription.
func (e *Engine) Subscribe() (<-chan []byte, func()) {
	return e.subs.add()
}

func (s *subscribers) add() (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan []byte)
	}
	id := s.next
	s.next++
	ch := make(chan []byte, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *subscribers) publish(st models.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	payload, err := json.Marshal(&st)
	if err != nil {
		return
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- payload:
		default:
		}
	}
}
