package work

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/catalogs"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// Task is a handle to a repeating or delayed host task.
type Task interface {
	Cancel()
}

// Env is the host surface the scheduler drives. RunForActor and
// RunOnRegionOf must never invoke fn on the calling goroutine.
type Env interface {
	CurrentTick() uint64
	// RunForActor repeats fn every periodTicks on the goroutine that owns
	// the actor's current region. ok=false when the actor is not online.
	RunForActor(actor modelpkg.ActorID, periodTicks uint64, fn func()) (task Task, ok bool)
	// RunOnRegionOf runs fn on the goroutine that owns pos.
	RunOnRegionOf(world string, pos modelpkg.Vec3i, fn func())

	CellAt(world string, pos modelpkg.Vec3i) (modelpkg.Cell, bool)
	SetCell(world string, pos modelpkg.Vec3i, cell modelpkg.Cell)
	DropItems(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i, item string, count int)
	IsChunkLive(key modelpkg.ChunkKey) bool
}

// Sessions is reset when an actor's queue runs dry.
type Sessions interface {
	Reset(actor modelpkg.ActorID)
}

type AuditLogger interface {
	WriteMutation(entry MutationEntry) error
}

type MutationEntry struct {
	Tick      uint64 `json:"tick"`
	Actor     string `json:"actor"`
	Kind      string `json:"kind"`
	World     string `json:"world"`
	Pos       [3]int `json:"pos"`
	From      string `json:"from"`
	To        string `json:"to"`
	Drop      string `json:"drop,omitempty"`
	DropCount int    `json:"drop_count,omitempty"`
}

type Scheduler struct {
	env      Env
	sessions Sessions
	mats     *catalogs.Materials
	tune     *tuning.Live
	audit    AuditLogger
	log      *log.Logger
	seed     int64

	loops   sync.Map // modelpkg.ActorID -> *loop
	applied atomic.Uint64
}

type loop struct {
	actor modelpkg.ActorID

	mu       sync.Mutex
	queue    []Item
	task     Task
	starting bool
	closed   bool // no further enqueue; a replacement loop must be created

	// discarded is read from region goroutines by already-dispatched items.
	discarded atomic.Bool
}

type Config struct {
	Env      Env
	Sessions Sessions
	Mats     *catalogs.Materials
	Tuning   *tuning.Live
	Audit    AuditLogger // optional
	Logger   *log.Logger
	Seed     int64
}

func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	mats := cfg.Mats
	if mats == nil {
		mats = catalogs.Default()
	}
	tune := cfg.Tuning
	if tune == nil {
		tune = tuning.NewLive(tuning.Defaults())
	}
	return &Scheduler{
		env:      cfg.Env,
		sessions: cfg.Sessions,
		mats:     mats,
		tune:     tune,
		audit:    cfg.Audit,
		log:      logger,
		seed:     cfg.Seed,
	}
}

func (s *Scheduler) openLoop(actor modelpkg.ActorID) *loop {
	for {
		v, _ := s.loops.LoadOrStore(actor, &loop{actor: actor})
		l := v.(*loop)
		l.mu.Lock()
		if !l.closed {
			return l // locked
		}
		l.mu.Unlock()
		// Lost a race with finish/StopLoop; drop the stale entry and retry.
		s.loops.CompareAndDelete(actor, l)
	}
}

// Enqueue appends items to the actor's queue in order.
func (s *Scheduler) Enqueue(actor modelpkg.ActorID, items ...Item) {
	if len(items) == 0 {
		return
	}
	l := s.openLoop(actor)
	l.queue = append(l.queue, items...)
	l.mu.Unlock()
}

// EnsureLoop starts the actor's drain loop unless one is already running.
func (s *Scheduler) EnsureLoop(actor modelpkg.ActorID) {
	l := s.openLoop(actor)
	if l.task != nil || l.starting {
		l.mu.Unlock()
		return
	}
	l.starting = true
	l.mu.Unlock()

	task, ok := s.env.RunForActor(actor, 1, func() { s.drain(l) })

	l.mu.Lock()
	l.starting = false
	if !ok {
		l.mu.Unlock()
		s.StopLoop(actor)
		if s.sessions != nil {
			s.sessions.Reset(actor)
		}
		return
	}
	l.task = task
	cancelled := l.closed
	l.mu.Unlock()
	if cancelled {
		task.Cancel()
	}
}

// StopLoop discards the actor's queue. Items already applied stay applied;
// nothing queued or in flight is applied afterwards. Safe to call repeatedly.
func (s *Scheduler) StopLoop(actor modelpkg.ActorID) {
	v, ok := s.loops.LoadAndDelete(actor)
	if !ok {
		return
	}
	l := v.(*loop)
	l.discarded.Store(true)
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	task := l.task
	l.task = nil
	l.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

// Pending returns the number of items still queued for actor.
func (s *Scheduler) Pending(actor modelpkg.ActorID) int {
	v, ok := s.loops.Load(actor)
	if !ok {
		return 0
	}
	l := v.(*loop)
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stats reports running loops and queued items across all actors.
func (s *Scheduler) Stats() (loops int, pending int) {
	s.loops.Range(func(_, v any) bool {
		l := v.(*loop)
		l.mu.Lock()
		pending += len(l.queue)
		l.mu.Unlock()
		loops++
		return true
	})
	return loops, pending
}

func (s *Scheduler) AppliedTotal() uint64 { return s.applied.Load() }

func (s *Scheduler) Shutdown() {
	s.loops.Range(func(k, _ any) bool {
		s.StopLoop(k.(modelpkg.ActorID))
		return true
	})
}

func (s *Scheduler) drain(l *loop) {
	now := s.env.CurrentTick()
	budget := s.tune.Get().Performance.BlocksPerTick

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	ready := make([]Item, 0, budget)
	rest := l.queue[:0]
	for _, it := range l.queue {
		if len(ready) < budget && it.ReadyAtTick <= now {
			ready = append(ready, it)
			continue
		}
		rest = append(rest, it)
	}
	for i := len(rest); i < len(l.queue); i++ {
		l.queue[i] = Item{}
	}
	l.queue = rest
	empty := len(l.queue) == 0
	l.mu.Unlock()

	for _, it := range ready {
		it := it
		s.env.RunOnRegionOf(it.World, it.Target, func() {
			if l.discarded.Load() {
				return
			}
			s.apply(it)
		})
	}
	if empty {
		s.finish(l)
	}
}

// finish closes a loop whose queue ran dry and returns the actor to Idle.
func (s *Scheduler) finish(l *loop) {
	l.mu.Lock()
	if l.closed || len(l.queue) > 0 {
		l.mu.Unlock()
		return
	}
	l.closed = true
	task := l.task
	l.task = nil
	l.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
	s.loops.CompareAndDelete(l.actor, l)
	if s.sessions != nil {
		s.sessions.Reset(l.actor)
	}
}
