package world

import (
	"fmt"
	"sync"

	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

type actorState struct {
	id   modelpkg.ActorID
	name string

	mu    sync.Mutex
	world string
	pos   modelpkg.Vec3i
	inv   map[string]int
}

func (a *actorState) location() (string, modelpkg.Vec3i) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.world, a.pos
}

func (w *World) actor(id modelpkg.ActorID) (*actorState, bool) {
	v, ok := w.actors.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*actorState), true
}

// Join places an actor in world at pos and loads the chunks around it.
func (w *World) Join(id modelpkg.ActorID, name, world string, pos modelpkg.Vec3i) error {
	if !w.WorldExists(world) {
		return fmt.Errorf("unknown world %q", world)
	}
	st := &actorState{id: id, name: name, world: world, pos: pos, inv: map[string]int{}}
	if _, loaded := w.actors.LoadOrStore(id, st); loaded {
		return fmt.Errorf("actor %s already online", id)
	}
	w.touchAround(world, pos)
	return nil
}

// Leave takes the actor offline. Its repeating tasks retire on the next tick.
func (w *World) Leave(id modelpkg.ActorID) {
	w.actors.Delete(id)
}

func (w *World) Move(id modelpkg.ActorID, pos modelpkg.Vec3i) error {
	st, ok := w.actor(id)
	if !ok {
		return fmt.Errorf("actor %s not online", id)
	}
	st.mu.Lock()
	st.pos = pos
	world := st.world
	st.mu.Unlock()
	w.touchAround(world, pos)
	return nil
}

func (w *World) Online(id modelpkg.ActorID) bool {
	_, ok := w.actors.Load(id)
	return ok
}

func (w *World) Position(id modelpkg.ActorID) (string, modelpkg.Vec3i, bool) {
	st, ok := w.actor(id)
	if !ok {
		return "", modelpkg.Vec3i{}, false
	}
	world, pos := st.location()
	return world, pos, true
}

// Inventory returns a copy of the actor's collected items.
func (w *World) Inventory(id modelpkg.ActorID) map[string]int {
	st, ok := w.actor(id)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]int, len(st.inv))
	for k, v := range st.inv {
		out[k] = v
	}
	return out
}
