package game

import (
	"context"
	"time"

	"airline_ops/internal/fleet"
)

// scheduler runs one tick function on an interval. start replaces any loop
// already running and only returns once the old goroutine has exited, so
// two loops never advance the game at the same time. Callers serialize
// start and stop.
type scheduler struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type tickFunc func(ctx context.Context) (fleet.TickResult, bool)

func (s *scheduler) start(interval time.Duration, tick tickFunc) {
	s.stop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				tick(ctx)
			}
		}
	}()
}

// stop cancels the loop and waits for it. It reports whether a loop was
// running.
func (s *scheduler) stop() bool {
	if s.cancel == nil {
		return false
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	return true
}

func (s *scheduler) running() bool {
	return s.cancel != nil
}
