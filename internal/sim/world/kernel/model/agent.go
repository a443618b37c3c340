package model

import (
	"strings"

	"github.com/google/uuid"
)

// ActorID is the stable identity of a connected actor.
type ActorID = uuid.UUID

// Tool is the item held in the actor's main hand when a trigger fires.
type Tool struct {
	Type      string
	Fortune   int
	SilkTouch bool
}

func (t Tool) IsAxe() bool     { return strings.HasSuffix(t.Type, "_AXE") }
func (t Tool) IsPickaxe() bool { return strings.HasSuffix(t.Type, "_PICKAXE") }
func (t Tool) IsHoe() bool     { return strings.HasSuffix(t.Type, "_HOE") }
