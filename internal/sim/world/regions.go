package world

import (
	"runtime/debug"
	"sync"

	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/logic/mathx"
)

type regionKey struct {
	World  string
	RX, RZ int
}

// region runs queued functions one at a time on its own goroutine. The
// queue is unbounded so a region may post to itself without blocking.
type region struct {
	key regionKey

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func (w *World) regionKeyOf(world string, pos modelpkg.Vec3i) regionKey {
	c := modelpkg.ChunkKeyOf(world, pos)
	return regionKey{
		World: world,
		RX:    mathx.FloorDiv(c.X, w.cfg.RegionChunks),
		RZ:    mathx.FloorDiv(c.Z, w.cfg.RegionChunks),
	}
}

// startRegionLocked requires the write lock on regionsMu.
func (w *World) startRegionLocked(k regionKey) *region {
	if r, ok := w.regions[k]; ok {
		return r
	}
	r := &region{key: k, wake: make(chan struct{}, 1)}
	w.regions[k] = r
	w.regionWG.Add(1)
	go func() {
		defer w.regionWG.Done()
		w.regionLoop(r)
	}()
	return r
}

func (w *World) regionLoop(r *region) {
	for {
		select {
		case <-w.stop:
			return
		case <-r.wake:
		}
		for {
			r.mu.Lock()
			batch := r.queue
			r.queue = nil
			r.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				w.runRegionFn(r, fn)
			}
		}
	}
}

func (w *World) runRegionFn(r *region, fn func()) {
	defer w.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			w.panicsTotal.Add(1)
			w.log.Printf("region %s:%d:%d task panic: %v\n%s", r.key.World, r.key.RX, r.key.RZ, rec, debug.Stack())
		}
	}()
	fn()
}

func (w *World) post(k regionKey, fn func()) {
	w.regionsMu.RLock()
	if w.stopped {
		w.regionsMu.RUnlock()
		return
	}
	if r, ok := w.regions[k]; ok {
		w.enqueue(r, fn)
		w.regionsMu.RUnlock()
		return
	}
	w.regionsMu.RUnlock()

	w.regionsMu.Lock()
	defer w.regionsMu.Unlock()
	if w.stopped {
		return
	}
	w.enqueue(w.startRegionLocked(k), fn)
}

func (w *World) enqueue(r *region, fn func()) {
	w.inflight.Add(1)
	r.mu.Lock()
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// RunOnRegionOf queues fn on the goroutine owning pos. fn never runs on the
// calling goroutine.
func (w *World) RunOnRegionOf(world string, pos modelpkg.Vec3i, fn func()) {
	w.post(w.regionKeyOf(world, pos), fn)
}

func (w *World) RegionCount() int {
	w.regionsMu.RLock()
	defer w.regionsMu.RUnlock()
	return len(w.regions)
}
