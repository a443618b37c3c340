package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/logic/mathx"
	genpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/terrain/gen"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/terrain/store"
)

// World is the reference host: a set of named worlds split into regions,
// each region owned by one goroutine, plus a global tick goroutine.
//
// Cell writes happen only on the goroutine owning the cell's region. Reads
// are safe from any goroutine.
type World struct {
	cfg tuning.World
	log *log.Logger

	stores map[string]*store.ChunkStore // fixed after New

	tick atomic.Uint64

	stop chan struct{}

	// regionsMu guards regions and stopped. Posts hold the read lock until
	// their function is queued, so Stop sees every post that got in.
	regionsMu sync.RWMutex
	regions   map[regionKey]*region
	stopped   bool
	regionWG  sync.WaitGroup
	inflight  sync.WaitGroup

	actors sync.Map // modelpkg.ActorID -> *actorState

	schedMu    sync.Mutex
	globalQ    []func()
	timers     []*schedTask
	actorTasks []*schedTask

	dropsTotal    atomic.Uint64
	unloadedTotal atomic.Uint64
	panicsTotal   atomic.Uint64
}

func New(cfg tuning.World, logger *log.Logger) (*World, error) {
	if logger == nil {
		logger = log.Default()
	}
	if len(cfg.Worlds) == 0 {
		return nil, fmt.Errorf("no worlds configured")
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = tuning.TicksPerSecond
	}
	if cfg.RegionChunks <= 0 {
		cfg.RegionChunks = 8
	}
	w := &World{
		cfg:     cfg,
		log:     logger,
		stores:  map[string]*store.ChunkStore{},
		stop:    make(chan struct{}),
		regions: map[regionKey]*region{},
	}
	gen := genpkg.Generator{Seed: cfg.Seed}
	for _, name := range cfg.Worlds {
		w.stores[name] = store.NewChunkStore(name, gen)
	}
	return w, nil
}

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) WorldExists(world string) bool {
	_, ok := w.stores[world]
	return ok
}

func (w *World) Worlds() []string { return append([]string(nil), w.cfg.Worlds...) }

func (w *World) Generator() genpkg.Generator { return genpkg.Generator{Seed: w.cfg.Seed} }

func (w *World) CellAt(world string, pos modelpkg.Vec3i) (modelpkg.Cell, bool) {
	s, ok := w.stores[world]
	if !ok {
		return modelpkg.Cell{}, false
	}
	return s.Get(pos)
}

// SetCell must run on the region goroutine owning pos.
func (w *World) SetCell(world string, pos modelpkg.Vec3i, cell modelpkg.Cell) {
	s, ok := w.stores[world]
	if !ok {
		return
	}
	s.Set(pos, cell)
}

func (w *World) IsChunkLive(key modelpkg.ChunkKey) bool {
	s, ok := w.stores[key.World]
	return ok && s.IsLive(key)
}

func (w *World) AddTicket(key modelpkg.ChunkKey) {
	if s, ok := w.stores[key.World]; ok {
		s.AddTicket(key, w.tick.Load())
	}
}

func (w *World) RemoveTicket(key modelpkg.ChunkKey) {
	if s, ok := w.stores[key.World]; ok {
		s.RemoveTicket(key)
	}
}

func (w *World) Tickets(key modelpkg.ChunkKey) int {
	if s, ok := w.stores[key.World]; ok {
		return s.Tickets(key)
	}
	return 0
}

// DropItems credits drops straight to the breaking actor's inventory.
func (w *World) DropItems(actor modelpkg.ActorID, _ string, _ modelpkg.Vec3i, item string, count int) {
	if count <= 0 {
		return
	}
	w.dropsTotal.Add(uint64(count))
	if st, ok := w.actor(actor); ok {
		st.mu.Lock()
		st.inv[item] += count
		st.mu.Unlock()
	}
}

// BreakDefault is the host's own single-cell break, used when no bulk
// operation claimed the trigger. Must run on the region owning pos.
func (w *World) BreakDefault(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i) bool {
	cell, ok := w.CellAt(world, pos)
	if !ok || cell.IsAir() {
		return false
	}
	w.SetCell(world, pos, modelpkg.Cell{Type: modelpkg.Air})
	w.DropItems(actor, world, pos, cell.Type, 1)
	return true
}

func (w *World) touchAround(world string, pos modelpkg.Vec3i) {
	s, ok := w.stores[world]
	if !ok {
		return
	}
	now := w.tick.Load()
	center := modelpkg.ChunkKeyOf(world, pos)
	r := w.cfg.ViewChunks
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			s.Touch(modelpkg.ChunkKey{World: world, X: center.X + dx, Z: center.Z + dz}, now)
		}
	}
}

// nearActor reports whether key is inside the view distance of any online
// actor.
func (w *World) nearActor(key modelpkg.ChunkKey) bool {
	near := false
	w.actors.Range(func(_, v any) bool {
		st := v.(*actorState)
		world, pos := st.location()
		if world != key.World {
			return true
		}
		c := modelpkg.ChunkKeyOf(world, pos)
		if mathx.AbsInt(c.X-key.X) <= w.cfg.ViewChunks && mathx.AbsInt(c.Z-key.Z) <= w.cfg.ViewChunks {
			near = true
			return false
		}
		return true
	})
	return near
}

func (w *World) unloadIdle(now uint64) {
	idle := uint64(w.cfg.IdleUnloadTicks)
	if now < idle {
		return
	}
	for _, name := range w.cfg.Worlds {
		n := w.stores[name].UnloadIdle(now-idle, w.nearActor)
		w.unloadedTotal.Add(uint64(n))
	}
}
