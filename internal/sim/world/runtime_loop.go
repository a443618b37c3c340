package world

import (
	"context"
	"time"
)

const unloadEveryTicks = 20

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.advance()
		}
	}
}

// Stop ends the tick loop and every region goroutine. Work still queued is
// dropped.
func (w *World) Stop() {
	w.regionsMu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stop)
	}
	w.regionsMu.Unlock()
	w.regionWG.Wait()

	w.regionsMu.Lock()
	defer w.regionsMu.Unlock()
	for _, r := range w.regions {
		r.mu.Lock()
		for range r.queue {
			w.inflight.Done()
		}
		r.queue = nil
		r.mu.Unlock()
	}
}

// advance runs one tick on the calling goroutine, which acts as the global
// goroutine for that tick.
func (w *World) advance() uint64 {
	now := w.tick.Add(1)
	global, timers, actorTasks := w.dueTasks(now)

	for _, fn := range global {
		fn()
	}
	for _, t := range timers {
		if !t.canceled.Load() {
			t.fn()
		}
	}
	for _, t := range actorTasks {
		st, ok := w.actor(t.actor)
		if !ok {
			// Offline: retire instead of running.
			t.Cancel()
			continue
		}
		world, pos := st.location()
		t := t
		w.RunOnRegionOf(world, pos, func() {
			if !t.canceled.Load() {
				t.fn()
			}
		})
	}
	if now%unloadEveryTicks == 0 {
		w.unloadIdle(now)
	}
	return now
}

// StepOnce advances one tick and waits until every region has finished the
// work posted during it. Intended for tests and replays; do not mix with Run.
func (w *World) StepOnce() uint64 {
	now := w.advance()
	w.inflight.Wait()
	return now
}

// Flush waits for all region work posted so far.
func (w *World) Flush() { w.inflight.Wait() }
