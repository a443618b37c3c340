package activation

import (
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/chunkloader"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/collect"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/session"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

const (
	// Ores break four per tick regardless of the scheduler budget.
	veinOresPerTick = 4
	// Extra ticks after the last felled batch before the sapling goes in.
	replantDelayTicks = 30
)

// Notifier delivers a keyed message to an actor. Text is resolved by the
// caller's transport.
type Notifier interface {
	Notify(actor modelpkg.ActorID, key string, args map[string]string)
}

type Clock interface {
	CurrentTick() uint64
}

// Trigger is a single-cell break attempted by an actor.
type Trigger struct {
	Actor     modelpkg.ActorID
	World     string
	Origin    modelpkg.Vec3i
	Tool      modelpkg.Tool
	Crouching bool
}

type Config struct {
	Collector *collect.Collector
	Sessions  *session.Machine
	Work      *work.Scheduler
	Claims    *chunkloader.Registry
	Notifier  Notifier
	Clock     Clock
	Tuning    *tuning.Live
	Logger    *log.Logger
}

// Router turns actor input into bulk operations.
type Router struct {
	collect  *collect.Collector
	sessions *session.Machine
	work     *work.Scheduler
	claims   *chunkloader.Registry
	notify   Notifier
	clock    Clock
	tune     *tuning.Live
	log      *log.Logger

	fellReady sync.Map // modelpkg.ActorID -> struct{}
}

func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	tune := cfg.Tuning
	if tune == nil {
		tune = tuning.NewLive(tuning.Defaults())
	}
	return &Router{
		collect:  cfg.Collector,
		sessions: cfg.Sessions,
		work:     cfg.Work,
		claims:   cfg.Claims,
		notify:   cfg.Notifier,
		clock:    cfg.Clock,
		tune:     tune,
		log:      logger,
	}
}

// HandleTrigger starts at most one bulk operation. It returns true when the
// host should cancel its own single-cell break.
func (r *Router) HandleTrigger(tr Trigger) bool {
	if r.sessions.IsActive(tr.Actor) {
		return false
	}
	mods := r.tune.Get().Modules
	now := r.clock.CurrentTick()

	if mods.TreeFeller.Enabled && tr.Crouching && tr.Tool.IsAxe() && r.collect.IsLog(tr.World, tr.Origin) {
		if r.fell(tr, now, mods.TreeFeller) {
			return true
		}
	}
	if mods.VeinMiner.Enabled && tr.Tool.IsPickaxe() && r.collect.IsHarvestableOre(tr.World, tr.Origin, tr.Tool) {
		if r.vein(tr, now, mods.VeinMiner) {
			return true
		}
	}
	if mods.AutoFarm.Enabled && tr.Tool.IsHoe() && r.collect.IsMatureCrop(tr.World, tr.Origin) {
		if tr.Crouching && mods.ChunkLoader.Enabled && mods.ChunkLoader.ClaimOnFarm {
			r.claimForFarm(tr)
		}
		if r.farm(tr, now, mods.AutoFarm) {
			return true
		}
	}
	return false
}

func (r *Router) fell(tr Trigger, now uint64, cfg tuning.TreeFeller) bool {
	cells := r.collect.Tree(tr.World, tr.Origin, cfg.MaxBlocks)
	if len(cells) <= 1 {
		return false
	}
	origin, _ := r.collect.CellAt(tr.World, tr.Origin)
	stump, _ := r.collect.Stump(tr.World, cells)
	if !r.sessions.Start(tr.Actor, session.FellPayload{LogType: origin.Type, Stump: stump}, now) {
		return false
	}

	// Cells become ready one tick budget at a time, in discovery order, so a
	// tree that fits the budget comes down in a single tick.
	budget := r.tune.Get().Performance.BlocksPerTick
	if budget < 1 {
		budget = 1
	}
	mats := r.collect.Materials()
	items := make([]work.Item, 0, len(cells)+1)
	for i, p := range cells {
		readyAt := now + uint64(i/budget)
		cell, _ := r.collect.CellAt(tr.World, p)
		if _, isLog := mats.LogFamily(cell.Type); isLog {
			items = append(items, work.BreakLogItem(tr.Actor, tr.World, p, readyAt))
		} else {
			items = append(items, work.BreakLeafItem(tr.Actor, tr.World, p, readyAt))
		}
	}
	if cfg.ReplantSaplings {
		if sapling, ok := mats.SaplingFor(origin.Type); ok {
			readyAt := now + uint64((len(cells)+budget-1)/budget) + replantDelayTicks
			items = append(items, work.PlantSaplingItem(tr.Actor, tr.World, stump, readyAt, sapling))
		}
	}
	r.work.Enqueue(tr.Actor, items...)
	r.work.EnsureLoop(tr.Actor)
	return true
}

func (r *Router) vein(tr Trigger, now uint64, cfg tuning.VeinMiner) bool {
	cells := r.collect.Vein(tr.World, tr.Origin, tr.Tool, cfg.MaxOres)
	if len(cells) <= 1 {
		return false
	}
	origin, _ := r.collect.CellAt(tr.World, tr.Origin)
	if !r.sessions.Start(tr.Actor, session.VeinPayload{Origin: tr.Origin, OreType: origin.Type}, now) {
		return false
	}

	fortune := 0
	if cfg.FortuneEnabled {
		fortune = tr.Tool.Fortune
	}
	dropOre := tr.Tool.SilkTouch && cfg.SilkTouchDropsOre
	items := make([]work.Item, 0, len(cells))
	for i, p := range cells {
		readyAt := now + uint64(i/veinOresPerTick)
		items = append(items, work.BreakOreItem(tr.Actor, tr.World, p, readyAt, fortune, dropOre))
	}
	r.work.Enqueue(tr.Actor, items...)
	r.work.EnsureLoop(tr.Actor)
	return true
}

func (r *Router) farm(tr Trigger, now uint64, cfg tuning.AutoFarm) bool {
	cells := r.collect.Farm(tr.World, tr.Origin, cfg.Radius)
	if len(cells) <= 1 {
		return false
	}
	origin, _ := r.collect.CellAt(tr.World, tr.Origin)
	if !r.sessions.Start(tr.Actor, session.FarmPayload{Origin: tr.Origin, CropType: origin.Type}, now) {
		return false
	}
	items := make([]work.Item, 0, len(cells))
	for _, p := range cells {
		items = append(items, work.HarvestCropItem(tr.Actor, tr.World, p, now, cfg.AutoReplant))
	}
	r.work.Enqueue(tr.Actor, items...)
	r.work.EnsureLoop(tr.Actor)
	return true
}

func (r *Router) claimForFarm(tr Trigger) {
	key := modelpkg.ChunkKeyOf(tr.World, tr.Origin)
	res := r.claims.Claim(tr.Actor, key)
	switch res {
	case chunkloader.Success, chunkloader.AtLimit:
		r.send(tr.Actor, res.NotifyKey(), r.claimArgs(tr.Actor, key))
	}
}

func (r *Router) claimArgs(actor modelpkg.ActorID, key modelpkg.ChunkKey) map[string]string {
	return map[string]string{
		"chunk": key.String(),
		"count": strconv.Itoa(r.claims.ClaimedCount(actor)),
		"max":   strconv.Itoa(r.claims.MaxClaims()),
	}
}

func (r *Router) send(actor modelpkg.ActorID, key string, args map[string]string) {
	if r.notify == nil {
		return
	}
	r.notify.Notify(actor, key, args)
}

// HandleJoin puts a (re)connecting actor in a clean Idle state.
func (r *Router) HandleJoin(actor modelpkg.ActorID) {
	r.work.StopLoop(actor)
	r.sessions.Reset(actor)
	r.fellReady.Delete(actor)
}

// HandleQuit discards any queued work. Cells already changed stay changed.
func (r *Router) HandleQuit(actor modelpkg.ActorID) {
	r.work.StopLoop(actor)
	r.sessions.Reset(actor)
	r.fellReady.Delete(actor)
}

// HandleSneak tells the actor when a crouching axe swing will fell a tree.
func (r *Router) HandleSneak(actor modelpkg.ActorID, sneaking bool, tool modelpkg.Tool) {
	if !r.tune.Get().Modules.TreeFeller.Enabled {
		return
	}
	if sneaking && tool.IsAxe() {
		if _, already := r.fellReady.LoadOrStore(actor, struct{}{}); !already {
			r.send(actor, "fell.ready", nil)
		}
		return
	}
	if !sneaking {
		if _, was := r.fellReady.LoadAndDelete(actor); was {
			r.send(actor, "fell.cleared", nil)
		}
	}
}

// HandleChunkCommand runs one of claim, unclaim, list or info against the
// chunk at key.
func (r *Router) HandleChunkCommand(actor modelpkg.ActorID, op string, key modelpkg.ChunkKey) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "claim":
		res := r.claims.Claim(actor, key)
		r.send(actor, res.NotifyKey(), r.claimArgs(actor, key))

	case "unclaim":
		if r.claims.Unclaim(actor, key) {
			r.send(actor, "chunk.unclaimed", r.claimArgs(actor, key))
		} else {
			r.send(actor, "chunk.not_owned", map[string]string{"chunk": key.String()})
		}

	case "list":
		keys := r.claims.Claims(actor)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k.String())
		}
		r.send(actor, "chunk.list", map[string]string{
			"count":  strconv.Itoa(len(keys)),
			"max":    strconv.Itoa(r.claims.MaxClaims()),
			"chunks": strings.Join(parts, ", "),
		})

	case "info":
		owner, ok := r.claims.Owner(key)
		switch {
		case !ok:
			r.send(actor, "chunk.info.unclaimed", map[string]string{"chunk": key.String()})
		case owner == actor:
			r.send(actor, "chunk.info.yours", map[string]string{"chunk": key.String()})
		default:
			r.send(actor, "chunk.info.owned", map[string]string{"chunk": key.String(), "owner": owner.String()})
		}

	default:
		r.send(actor, "chunk.usage", nil)
	}
}
