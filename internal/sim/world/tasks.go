package world

import (
	"sync/atomic"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/chunkloader"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// schedTask is a delayed, fixed-rate or actor-bound task. period 0 means
// run once.
type schedTask struct {
	actor    modelpkg.ActorID
	next     uint64
	period   uint64
	fn       func()
	canceled atomic.Bool
}

func (t *schedTask) Cancel() { t.canceled.Store(true) }

// RunGlobal queues fn for the start of the next tick on the global goroutine.
func (w *World) RunGlobal(fn func()) {
	w.schedMu.Lock()
	w.globalQ = append(w.globalQ, fn)
	w.schedMu.Unlock()
}

func (w *World) RunDelayed(ticks uint64, fn func()) chunkloader.Task {
	if ticks == 0 {
		ticks = 1
	}
	t := &schedTask{next: w.tick.Load() + ticks, fn: fn}
	w.schedMu.Lock()
	w.timers = append(w.timers, t)
	w.schedMu.Unlock()
	return t
}

func (w *World) RunAtFixedRate(delayTicks, periodTicks uint64, fn func()) chunkloader.Task {
	if delayTicks == 0 {
		delayTicks = 1
	}
	if periodTicks == 0 {
		periodTicks = 1
	}
	t := &schedTask{next: w.tick.Load() + delayTicks, period: periodTicks, fn: fn}
	w.schedMu.Lock()
	w.timers = append(w.timers, t)
	w.schedMu.Unlock()
	return t
}

// RunForActor repeats fn every periodTicks on the region currently holding
// the actor. The task retires when the actor goes offline.
func (w *World) RunForActor(actor modelpkg.ActorID, periodTicks uint64, fn func()) (work.Task, bool) {
	if !w.Online(actor) {
		return nil, false
	}
	if periodTicks == 0 {
		periodTicks = 1
	}
	t := &schedTask{actor: actor, next: w.tick.Load() + periodTicks, period: periodTicks, fn: fn}
	w.schedMu.Lock()
	w.actorTasks = append(w.actorTasks, t)
	w.schedMu.Unlock()
	return t, true
}

// dueTasks pops everything that should run at now and reschedules repeating
// tasks. Canceled tasks are dropped here.
func (w *World) dueTasks(now uint64) (global []func(), timers, actors []*schedTask) {
	w.schedMu.Lock()
	defer w.schedMu.Unlock()

	global = w.globalQ
	w.globalQ = nil

	keep := w.timers[:0]
	for _, t := range w.timers {
		if t.canceled.Load() {
			continue
		}
		if t.next <= now {
			timers = append(timers, t)
			if t.period == 0 {
				continue
			}
			t.next += t.period
		}
		keep = append(keep, t)
	}
	clearTail(w.timers, len(keep))
	w.timers = keep

	keepA := w.actorTasks[:0]
	for _, t := range w.actorTasks {
		if t.canceled.Load() {
			continue
		}
		if t.next <= now {
			actors = append(actors, t)
			t.next += t.period
		}
		keepA = append(keepA, t)
	}
	clearTail(w.actorTasks, len(keepA))
	w.actorTasks = keepA
	return global, timers, actors
}

func clearTail(s []*schedTask, from int) {
	for i := from; i < len(s); i++ {
		s[i] = nil
	}
}

func (w *World) taskCounts() (timers, actorTasks int) {
	w.schedMu.Lock()
	defer w.schedMu.Unlock()
	return len(w.timers), len(w.actorTasks)
}
