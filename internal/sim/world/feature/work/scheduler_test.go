package work

import (
	"sort"
	"testing"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	"github.com/google/uuid"
)

type fakeTask struct {
	env *fakeEnv
	id  int
}

func (t *fakeTask) Cancel() { delete(t.env.tasks, t.id) }

// fakeEnv runs everything on the test goroutine. step advances the tick and
// runs every registered actor task once.
type fakeEnv struct {
	tick    uint64
	cells   map[modelpkg.Vec3i]modelpkg.Cell
	dead    map[modelpkg.ChunkKey]bool
	offline bool

	tasks  map[int]func()
	nextID int

	deferRegion bool
	region      []func()

	drops map[string]int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		cells: map[modelpkg.Vec3i]modelpkg.Cell{},
		dead:  map[modelpkg.ChunkKey]bool{},
		tasks: map[int]func(){},
		drops: map[string]int{},
	}
}

func (e *fakeEnv) CurrentTick() uint64 { return e.tick }

func (e *fakeEnv) RunForActor(_ modelpkg.ActorID, _ uint64, fn func()) (Task, bool) {
	if e.offline {
		return nil, false
	}
	e.nextID++
	e.tasks[e.nextID] = fn
	return &fakeTask{env: e, id: e.nextID}, true
}

func (e *fakeEnv) RunOnRegionOf(_ string, _ modelpkg.Vec3i, fn func()) {
	if e.deferRegion {
		e.region = append(e.region, fn)
		return
	}
	fn()
}

func (e *fakeEnv) CellAt(_ string, pos modelpkg.Vec3i) (modelpkg.Cell, bool) {
	if c, ok := e.cells[pos]; ok {
		return c, true
	}
	return modelpkg.Cell{Type: modelpkg.Air}, true
}

func (e *fakeEnv) SetCell(_ string, pos modelpkg.Vec3i, cell modelpkg.Cell) {
	if cell.IsAir() {
		delete(e.cells, pos)
		return
	}
	e.cells[pos] = cell
}

func (e *fakeEnv) DropItems(_ modelpkg.ActorID, _ string, _ modelpkg.Vec3i, item string, count int) {
	e.drops[item] += count
}

func (e *fakeEnv) IsChunkLive(key modelpkg.ChunkKey) bool { return !e.dead[key] }

func (e *fakeEnv) step() {
	e.tick++
	ids := make([]int, 0, len(e.tasks))
	for id := range e.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := e.tasks[id]; ok {
			fn()
		}
	}
}

func (e *fakeEnv) flushRegion() {
	fns := e.region
	e.region = nil
	for _, fn := range fns {
		fn()
	}
}

type fakeSessions struct{ resets map[modelpkg.ActorID]int }

func (f *fakeSessions) Reset(actor modelpkg.ActorID) { f.resets[actor]++ }

type memAudit struct{ entries []MutationEntry }

func (m *memAudit) WriteMutation(e MutationEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newTestScheduler(env *fakeEnv, mutate func(*tuning.Tuning)) (*Scheduler, *fakeSessions, *memAudit) {
	tune := tuning.Defaults()
	if mutate != nil {
		mutate(&tune)
	}
	sess := &fakeSessions{resets: map[modelpkg.ActorID]int{}}
	audit := &memAudit{}
	s := NewScheduler(Config{
		Env:      env,
		Sessions: sess,
		Tuning:   tuning.NewLive(tune),
		Audit:    audit,
		Seed:     1,
	})
	return s, sess, audit
}

func v(x, y, z int) modelpkg.Vec3i { return modelpkg.Vec3i{X: x, Y: y, Z: z} }

func logRow(env *fakeEnv, actor modelpkg.ActorID, n int) []Item {
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		p := v(i, 64, 0)
		env.cells[p] = modelpkg.Cell{Type: "OAK_LOG"}
		items = append(items, BreakLogItem(actor, "world", p, 0))
	}
	return items
}

func TestScheduler_DrainsSmallBatchInOneTick(t *testing.T) {
	env := newFakeEnv()
	s, sess, audit := newTestScheduler(env, nil)
	actor := uuid.New()

	s.Enqueue(actor, logRow(env, actor, 8)...)
	s.EnsureLoop(actor)
	env.step()

	if len(env.cells) != 0 {
		t.Fatalf("cells left after one tick: got=%d want=0", len(env.cells))
	}
	if env.drops["OAK_LOG"] != 8 {
		t.Fatalf("log drops: got=%d want=8", env.drops["OAK_LOG"])
	}
	if got := s.Pending(actor); got != 0 {
		t.Fatalf("pending: got=%d want=0", got)
	}
	if sess.resets[actor] != 1 {
		t.Fatalf("session resets: got=%d want=1", sess.resets[actor])
	}
	if len(env.tasks) != 0 {
		t.Fatalf("loop should cancel itself: tasks=%d", len(env.tasks))
	}
	if len(audit.entries) != 8 || audit.entries[0].Kind != "BREAK_LOG" || audit.entries[0].To != modelpkg.Air {
		t.Fatalf("audit entries: got=%+v", audit.entries)
	}
}

func TestScheduler_RespectsPerTickBudget(t *testing.T) {
	env := newFakeEnv()
	s, sess, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	s.Enqueue(actor, logRow(env, actor, 40)...)
	s.EnsureLoop(actor)

	env.step()
	if got := len(env.cells); got != 8 {
		t.Fatalf("cells after tick 1: got=%d want=8", got)
	}
	if got := s.Pending(actor); got != 8 {
		t.Fatalf("pending after tick 1: got=%d want=8", got)
	}
	if sess.resets[actor] != 0 {
		t.Fatalf("reset before queue drained")
	}
	// FIFO: the first 32 went first.
	if _, ok := env.cells[v(31, 64, 0)]; ok {
		t.Fatalf("item 31 should have been applied in tick 1")
	}
	if _, ok := env.cells[v(32, 64, 0)]; !ok {
		t.Fatalf("item 32 should still be standing after tick 1")
	}

	env.step()
	if got := len(env.cells); got != 0 {
		t.Fatalf("cells after tick 2: got=%d want=0", got)
	}
	if sess.resets[actor] != 1 {
		t.Fatalf("session resets: got=%d want=1", sess.resets[actor])
	}
}

func TestScheduler_NeverAppliesBeforeReadyTick(t *testing.T) {
	env := newFakeEnv()
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	late, early := v(0, 64, 0), v(1, 64, 0)
	env.cells[late] = modelpkg.Cell{Type: "OAK_LOG"}
	env.cells[early] = modelpkg.Cell{Type: "OAK_LOG"}
	s.Enqueue(actor,
		BreakLogItem(actor, "world", late, 3),
		BreakLogItem(actor, "world", early, 0),
	)
	s.EnsureLoop(actor)

	env.step()
	if _, ok := env.cells[early]; ok {
		t.Fatalf("ready item behind a waiting one was not applied")
	}
	if _, ok := env.cells[late]; !ok {
		t.Fatalf("item applied before its ready tick")
	}
	env.step()
	if _, ok := env.cells[late]; !ok {
		t.Fatalf("item applied at tick %d before ready tick 3", env.tick)
	}
	env.step()
	if _, ok := env.cells[late]; ok {
		t.Fatalf("item not applied at its ready tick")
	}
}

func TestScheduler_EnsureLoopTwiceKeepsOneLoop(t *testing.T) {
	env := newFakeEnv()
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	s.Enqueue(actor, logRow(env, actor, 3)...)
	s.EnsureLoop(actor)
	s.EnsureLoop(actor)
	if len(env.tasks) != 1 {
		t.Fatalf("loops: got=%d want=1", len(env.tasks))
	}
	loops, pending := s.Stats()
	if loops != 1 || pending != 3 {
		t.Fatalf("stats: got=(%d,%d) want=(1,3)", loops, pending)
	}
}

func TestScheduler_StopLoopDiscardsQueuedAndInFlight(t *testing.T) {
	env := newFakeEnv()
	env.deferRegion = true
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	s.Enqueue(actor, logRow(env, actor, 40)...)
	s.EnsureLoop(actor)
	env.step() // 32 dispatched, none applied yet

	s.StopLoop(actor)
	s.StopLoop(actor)
	env.flushRegion()
	env.step()

	if got := len(env.cells); got != 40 {
		t.Fatalf("cells mutated after stop: got=%d want=40", got)
	}
	if got := s.Pending(actor); got != 0 {
		t.Fatalf("pending after stop: got=%d want=0", got)
	}
	if len(env.tasks) != 0 {
		t.Fatalf("loop still scheduled after stop")
	}
}

func TestScheduler_RestartAfterCompletion(t *testing.T) {
	env := newFakeEnv()
	s, sess, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	s.Enqueue(actor, logRow(env, actor, 2)...)
	s.EnsureLoop(actor)
	env.step()

	p := v(0, 70, 0)
	env.cells[p] = modelpkg.Cell{Type: "BIRCH_LOG"}
	s.Enqueue(actor, BreakLogItem(actor, "world", p, 0))
	s.EnsureLoop(actor)
	env.step()
	if _, ok := env.cells[p]; ok {
		t.Fatalf("second batch not applied")
	}
	if sess.resets[actor] != 2 {
		t.Fatalf("session resets: got=%d want=2", sess.resets[actor])
	}
}

func TestScheduler_OfflineActorResets(t *testing.T) {
	env := newFakeEnv()
	env.offline = true
	s, sess, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	s.Enqueue(actor, logRow(env, actor, 2)...)
	s.EnsureLoop(actor)
	if s.Pending(actor) != 0 || sess.resets[actor] != 1 {
		t.Fatalf("offline actor: pending=%d resets=%d", s.Pending(actor), sess.resets[actor])
	}
}

func TestApply_OreDrops(t *testing.T) {
	env := newFakeEnv()
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	silk, plain := v(0, 10, 0), v(1, 10, 0)
	env.cells[silk] = modelpkg.Cell{Type: "IRON_ORE"}
	env.cells[plain] = modelpkg.Cell{Type: "DEEPSLATE_IRON_ORE"}
	s.Enqueue(actor,
		BreakOreItem(actor, "world", silk, 0, 0, true),
		BreakOreItem(actor, "world", plain, 0, 0, false),
	)
	s.EnsureLoop(actor)
	env.step()

	if env.drops["IRON_ORE"] != 1 {
		t.Fatalf("silk drop: got=%d want=1", env.drops["IRON_ORE"])
	}
	if env.drops["RAW_IRON"] != 1 {
		t.Fatalf("resource drop: got=%d want=1", env.drops["RAW_IRON"])
	}
	if len(env.cells) != 0 {
		t.Fatalf("ores left: %v", env.cells)
	}
}

func TestApply_CropHarvestAndReplant(t *testing.T) {
	env := newFakeEnv()
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	replant, bare, young := v(0, 64, 0), v(1, 64, 0), v(2, 64, 0)
	env.cells[replant] = modelpkg.Cell{Type: "WHEAT", Age: 7}
	env.cells[bare] = modelpkg.Cell{Type: "CARROTS", Age: 7}
	env.cells[young] = modelpkg.Cell{Type: "WHEAT", Age: 3}
	s.Enqueue(actor,
		HarvestCropItem(actor, "world", replant, 0, true),
		HarvestCropItem(actor, "world", bare, 0, false),
		HarvestCropItem(actor, "world", young, 0, true),
	)
	s.EnsureLoop(actor)
	env.step()

	if got := env.cells[replant]; got.Type != "WHEAT" || got.Age != 0 {
		t.Fatalf("replanted cell: got=%+v want WHEAT age 0", got)
	}
	if _, ok := env.cells[bare]; ok {
		t.Fatalf("harvest without replant left a crop")
	}
	if got := env.cells[young]; got.Age != 3 {
		t.Fatalf("immature crop touched: got=%+v", got)
	}
	if env.drops["WHEAT"] != 1 || env.drops["CARROT"] != 1 {
		t.Fatalf("crop drops: got=%v", env.drops)
	}
}

func TestApply_SaplingNeedsAirAboveSoil(t *testing.T) {
	env := newFakeEnv()
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	good, rocky := v(0, 64, 0), v(5, 64, 0)
	env.cells[good.Below()] = modelpkg.Cell{Type: "GRASS_BLOCK"}
	env.cells[rocky.Below()] = modelpkg.Cell{Type: "STONE"}
	s.Enqueue(actor,
		PlantSaplingItem(actor, "world", good, 0, "OAK_SAPLING"),
		PlantSaplingItem(actor, "world", rocky, 0, "OAK_SAPLING"),
	)
	s.EnsureLoop(actor)
	env.step()

	if got := env.cells[good].Type; got != "OAK_SAPLING" {
		t.Fatalf("sapling on grass: got=%q want=OAK_SAPLING", got)
	}
	if _, ok := env.cells[rocky]; ok {
		t.Fatalf("sapling placed on stone")
	}
}

func TestApply_SkipsUnloadedChunk(t *testing.T) {
	env := newFakeEnv()
	s, _, _ := newTestScheduler(env, nil)
	actor := uuid.New()

	p := v(100, 64, 100)
	env.cells[p] = modelpkg.Cell{Type: "OAK_LOG"}
	env.dead[modelpkg.ChunkKeyOf("world", p)] = true
	s.Enqueue(actor, BreakLogItem(actor, "world", p, 0))
	s.EnsureLoop(actor)
	env.step()

	if _, ok := env.cells[p]; !ok {
		t.Fatalf("item applied in an unloaded chunk")
	}

	s2, _, _ := newTestScheduler(env, func(tu *tuning.Tuning) { tu.Performance.RequireChunkLoaded = false })
	s2.Enqueue(actor, BreakLogItem(actor, "world", p, 0))
	s2.EnsureLoop(actor)
	env.step()
	if _, ok := env.cells[p]; ok {
		t.Fatalf("item skipped with require_chunk_loaded=false")
	}
}

func TestApply_SkipsChangedTarget(t *testing.T) {
	env := newFakeEnv()
	s, _, audit := newTestScheduler(env, nil)
	actor := uuid.New()

	p := v(0, 64, 0)
	env.cells[p] = modelpkg.Cell{Type: "STONE"}
	s.Enqueue(actor, BreakLogItem(actor, "world", p, 0))
	s.EnsureLoop(actor)
	env.step()
	if env.cells[p].Type != "STONE" || len(audit.entries) != 0 {
		t.Fatalf("non-log target mutated: cell=%+v audit=%d", env.cells[p], len(audit.entries))
	}
}
