package chunkloader

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// StartupReapplyDelayTicks gives the host time to finish loading worlds
// before persisted tickets are re-issued.
const StartupReapplyDelayTicks = 20

// SyncIntervalTicks is how often tickets are reconciled with the module
// switch, so toggling chunk_loader at runtime takes effect within a second.
const SyncIntervalTicks = 20

type Task interface {
	Cancel()
}

// Env is the host surface the registry needs. Ticket calls are only made
// from functions scheduled through RunGlobal, RunDelayed or RunAtFixedRate,
// except during Shutdown.
type Env interface {
	RunGlobal(fn func())
	RunDelayed(ticks uint64, fn func()) Task
	RunAtFixedRate(delayTicks, periodTicks uint64, fn func()) Task

	WorldExists(world string) bool
	IsChunkLive(key modelpkg.ChunkKey) bool
	AddTicket(key modelpkg.ChunkKey)
	RemoveTicket(key modelpkg.ChunkKey)
}

// Store persists actor id -> claim keys ("world:x:z").
type Store interface {
	Load() (map[string][]string, error)
	Save(claims map[string][]string) error
}

type Registry struct {
	env   Env
	store Store
	tune  *tuning.Live
	log   *log.Logger

	owners   sync.Map // modelpkg.ChunkKey -> modelpkg.ActorID
	byActor  sync.Map // modelpkg.ActorID -> *actorClaims
	ticketed sync.Map // modelpkg.ChunkKey -> struct{}; keys holding our ticket
	total    atomic.Int64

	saveMu sync.Mutex
	// Set when the store could not be read. Saving would replace claims we
	// never saw, so the registry stays memory-only until restart.
	loadFailed atomic.Bool

	tasksMu sync.Mutex
	tasks   []Task
}

type actorClaims struct {
	mu   sync.Mutex
	keys []modelpkg.ChunkKey // claim order
}

func (a *actorClaims) indexOf(key modelpkg.ChunkKey) int {
	for i, k := range a.keys {
		if k == key {
			return i
		}
	}
	return -1
}

func NewRegistry(env Env, store Store, tune *tuning.Live, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	if tune == nil {
		tune = tuning.NewLive(tuning.Defaults())
	}
	return &Registry{env: env, store: store, tune: tune, log: logger}
}

func (r *Registry) actor(actor modelpkg.ActorID) *actorClaims {
	v, _ := r.byActor.LoadOrStore(actor, &actorClaims{})
	return v.(*actorClaims)
}

func (r *Registry) enabled() bool { return r.tune.Get().Modules.ChunkLoader.Enabled }

func (r *Registry) MaxClaims() int { return r.tune.Get().Modules.ChunkLoader.MaxChunksPerPlayer }

// Claim makes actor the owner of key and keeps the chunk loaded.
func (r *Registry) Claim(actor modelpkg.ActorID, key modelpkg.ChunkKey) ClaimResult {
	if !r.enabled() {
		return Disabled
	}
	if v, ok := r.owners.Load(key); ok {
		if v.(modelpkg.ActorID) == actor {
			return AlreadyClaimed
		}
		return ClaimedByOther
	}

	ac := r.actor(actor)
	ac.mu.Lock()
	if ac.indexOf(key) >= 0 {
		ac.mu.Unlock()
		return AlreadyClaimed
	}
	if len(ac.keys) >= r.MaxClaims() {
		ac.mu.Unlock()
		return AtLimit
	}
	if v, loaded := r.owners.LoadOrStore(key, actor); loaded && v.(modelpkg.ActorID) != actor {
		ac.mu.Unlock()
		return ClaimedByOther
	}
	ac.keys = append(ac.keys, key)
	ac.mu.Unlock()
	r.total.Add(1)

	r.env.RunGlobal(func() {
		if r.enabled() {
			r.addTicket(key)
		}
	})
	r.save()
	return Success
}

// Unclaim releases key if actor owns it.
func (r *Registry) Unclaim(actor modelpkg.ActorID, key modelpkg.ChunkKey) bool {
	v, ok := r.byActor.Load(actor)
	if !ok {
		return false
	}
	ac := v.(*actorClaims)
	ac.mu.Lock()
	i := ac.indexOf(key)
	if i < 0 {
		ac.mu.Unlock()
		return false
	}
	ac.keys = append(ac.keys[:i], ac.keys[i+1:]...)
	ac.mu.Unlock()
	r.owners.CompareAndDelete(key, actor)
	r.total.Add(-1)

	r.env.RunGlobal(func() { r.removeTicket(key) })
	r.save()
	return true
}

func (r *Registry) IsClaimed(key modelpkg.ChunkKey) bool {
	_, ok := r.owners.Load(key)
	return ok
}

func (r *Registry) IsClaimedBy(actor modelpkg.ActorID, key modelpkg.ChunkKey) bool {
	v, ok := r.owners.Load(key)
	return ok && v.(modelpkg.ActorID) == actor
}

func (r *Registry) Owner(key modelpkg.ChunkKey) (modelpkg.ActorID, bool) {
	v, ok := r.owners.Load(key)
	if !ok {
		return modelpkg.ActorID{}, false
	}
	return v.(modelpkg.ActorID), true
}

func (r *Registry) ClaimedCount(actor modelpkg.ActorID) int {
	v, ok := r.byActor.Load(actor)
	if !ok {
		return 0
	}
	ac := v.(*actorClaims)
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return len(ac.keys)
}

func (r *Registry) TotalClaimed() int { return int(r.total.Load()) }

// Claims returns actor's keys sorted by world, then x, then z.
func (r *Registry) Claims(actor modelpkg.ActorID) []modelpkg.ChunkKey {
	v, ok := r.byActor.Load(actor)
	if !ok {
		return nil
	}
	ac := v.(*actorClaims)
	ac.mu.Lock()
	out := append([]modelpkg.ChunkKey(nil), ac.keys...)
	ac.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ValidateAll re-issues tickets for claimed chunks that are no longer live
// and drops per-actor entries that lost ownership of their key. Returns the
// number of tickets re-issued.
func (r *Registry) ValidateAll() int {
	dropped := 0
	r.byActor.Range(func(k, v any) bool {
		actor := k.(modelpkg.ActorID)
		ac := v.(*actorClaims)
		ac.mu.Lock()
		kept := ac.keys[:0]
		for _, key := range ac.keys {
			if r.IsClaimedBy(actor, key) {
				kept = append(kept, key)
				continue
			}
			r.total.Add(-1)
			dropped++
			r.log.Printf("chunkloader: dropping duplicate claim %s by %s", key, actor)
		}
		ac.keys = kept
		ac.mu.Unlock()
		return true
	})
	if dropped > 0 {
		r.save()
	}

	if !r.enabled() {
		return 0
	}
	reissued := 0
	r.owners.Range(func(k, _ any) bool {
		key := k.(modelpkg.ChunkKey)
		if r.env.WorldExists(key.World) && !r.env.IsChunkLive(key) {
			// The host lost the chunk despite our ticket; issue it afresh.
			r.removeTicket(key)
			r.addTicket(key)
			reissued++
		}
		return true
	})
	return reissued
}

func (r *Registry) addTicket(key modelpkg.ChunkKey) {
	if _, held := r.ticketed.LoadOrStore(key, struct{}{}); !held {
		r.env.AddTicket(key)
	}
}

func (r *Registry) removeTicket(key modelpkg.ChunkKey) {
	if _, held := r.ticketed.LoadAndDelete(key); held {
		r.env.RemoveTicket(key)
	}
}

// SyncTickets makes ticket state follow the module switch: every claim in a
// loaded world holds a ticket while chunk_loader is enabled, none do while
// it is disabled. Runs on the global goroutine.
func (r *Registry) SyncTickets() {
	if !r.enabled() {
		released := 0
		r.ticketed.Range(func(k, _ any) bool {
			r.removeTicket(k.(modelpkg.ChunkKey))
			released++
			return true
		})
		if released > 0 {
			r.log.Printf("chunkloader: disabled, released %d chunk tickets", released)
		}
		return
	}
	added := 0
	r.owners.Range(func(k, _ any) bool {
		key := k.(modelpkg.ChunkKey)
		if _, held := r.ticketed.Load(key); held || !r.env.WorldExists(key.World) {
			return true
		}
		r.addTicket(key)
		added++
		return true
	})
	if added > 0 {
		r.log.Printf("chunkloader: applied %d chunk tickets", added)
	}
}

// Start loads persisted claims and schedules ticket upkeep: tickets are
// applied after a short delay and then kept in step with the module switch,
// and claims are validated periodically. Both run even while chunk_loader is
// disabled so enabling it at runtime takes effect.
func (r *Registry) Start() {
	r.load()

	upkeep := r.env.RunAtFixedRate(StartupReapplyDelayTicks, SyncIntervalTicks, r.SyncTickets)
	period := r.tune.Get().Modules.ChunkLoader.ValidationIntervalTicks()
	validate := r.env.RunAtFixedRate(period, period, func() { r.ValidateAll() })

	r.tasksMu.Lock()
	r.tasks = append(r.tasks, upkeep, validate)
	r.tasksMu.Unlock()
}

func (r *Registry) load() {
	if r.store == nil {
		return
	}
	data, err := r.store.Load()
	if err != nil {
		r.loadFailed.Store(true)
		r.log.Printf("chunkloader: load claims: %v; claims will not be saved until the store is fixed and the server restarted", err)
		return
	}
	// Sorted so that duplicate owners resolve to the smallest actor id.
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	loaded := 0
	for _, id := range ids {
		actor, err := uuid.Parse(id)
		if err != nil {
			r.log.Printf("chunkloader: skipping claims of invalid actor id %q: %v", id, err)
			continue
		}
		ac := r.actor(actor)
		for _, raw := range data[id] {
			key, err := modelpkg.ParseChunkKey(raw)
			if err != nil {
				r.log.Printf("chunkloader: skipping claim of %s: %v", id, err)
				continue
			}
			if v, dup := r.owners.LoadOrStore(key, actor); dup {
				r.log.Printf("chunkloader: %s already owned by %s, ignoring claim of %s", key, v.(modelpkg.ActorID), id)
				continue
			}
			ac.mu.Lock()
			ac.keys = append(ac.keys, key)
			ac.mu.Unlock()
			r.total.Add(1)
			loaded++
		}
	}
	r.log.Printf("chunkloader: loaded %d claims for %d actors", loaded, len(ids))
}

// Shutdown stops validation, releases every ticket and persists the registry.
func (r *Registry) Shutdown() {
	r.tasksMu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.tasksMu.Unlock()
	for _, t := range tasks {
		if t != nil {
			t.Cancel()
		}
	}
	r.ticketed.Range(func(k, _ any) bool {
		r.removeTicket(k.(modelpkg.ChunkKey))
		return true
	})
	r.save()
}

// Snapshot returns the persisted form of the registry.
func (r *Registry) Snapshot() map[string][]string {
	out := map[string][]string{}
	r.byActor.Range(func(k, v any) bool {
		ac := v.(*actorClaims)
		ac.mu.Lock()
		if len(ac.keys) > 0 {
			keys := make([]string, 0, len(ac.keys))
			for _, key := range ac.keys {
				keys = append(keys, key.String())
			}
			out[k.(modelpkg.ActorID).String()] = keys
		}
		ac.mu.Unlock()
		return true
	})
	return out
}

func (r *Registry) save() {
	if r.store == nil || r.loadFailed.Load() {
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if err := r.store.Save(r.Snapshot()); err != nil {
		r.log.Printf("chunkloader: save claims: %v", err)
	}
}
