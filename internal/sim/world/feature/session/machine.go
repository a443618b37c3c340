package session

import (
	"sync"
	"sync/atomic"

	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

type Kind int

const (
	Idle Kind = iota
	Active
)

func (k Kind) String() string {
	if k == Active {
		return "ACTIVE"
	}
	return "IDLE"
}

// Payload is the feature-specific data carried by an active session.
type Payload interface {
	Feature() string
}

// FellPayload remembers what to replant once the tree is down.
type FellPayload struct {
	LogType string
	Stump   modelpkg.Vec3i
}

func (FellPayload) Feature() string { return "tree_feller" }

type VeinPayload struct {
	Origin  modelpkg.Vec3i
	OreType string
}

func (VeinPayload) Feature() string { return "vein_miner" }

type FarmPayload struct {
	Origin   modelpkg.Vec3i
	CropType string
}

func (FarmPayload) Feature() string { return "auto_farm" }

type State struct {
	Kind        Kind
	Payload     Payload
	StartedTick uint64
}

// Machine tracks the Idle/Active state of every actor. Absence from the map
// is Idle. Each actor's transition is a single atomic map operation, so
// actors never wait on one another.
type Machine struct {
	states sync.Map // modelpkg.ActorID -> State
	active atomic.Int64
}

func NewMachine() *Machine { return &Machine{} }

func (m *Machine) IsActive(actor modelpkg.ActorID) bool {
	_, ok := m.states.Load(actor)
	return ok
}

// Start moves an Idle actor to Active. It returns false and changes nothing
// when the actor is already Active.
func (m *Machine) Start(actor modelpkg.ActorID, payload Payload, nowTick uint64) bool {
	_, loaded := m.states.LoadOrStore(actor, State{Kind: Active, Payload: payload, StartedTick: nowTick})
	if loaded {
		return false
	}
	m.active.Add(1)
	return true
}

// Reset returns the actor to Idle. Resetting an Idle actor is a no-op.
func (m *Machine) Reset(actor modelpkg.ActorID) {
	if _, ok := m.states.LoadAndDelete(actor); ok {
		m.active.Add(-1)
	}
}

func (m *Machine) State(actor modelpkg.ActorID) State {
	if v, ok := m.states.Load(actor); ok {
		return v.(State)
	}
	return State{Kind: Idle}
}

func (m *Machine) ActiveCount() int { return int(m.active.Load()) }

// Clear drops every session; used at shutdown.
func (m *Machine) Clear() {
	m.states.Range(func(k, _ any) bool {
		m.Reset(k.(modelpkg.ActorID))
		return true
	})
}
