package work

import (
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

type Kind int

const (
	BreakLog Kind = iota + 1
	BreakLeaf
	BreakOre
	HarvestCrop
	PlantSapling
)

func (k Kind) String() string {
	switch k {
	case BreakLog:
		return "BREAK_LOG"
	case BreakLeaf:
		return "BREAK_LEAF"
	case BreakOre:
		return "BREAK_ORE"
	case HarvestCrop:
		return "HARVEST_CROP"
	case PlantSapling:
		return "PLANT_SAPLING"
	default:
		return "UNKNOWN"
	}
}

// Payload carries the per-item policy decided when the item was created.
type Payload struct {
	// Ores: fortune level applied to resource drops (0 = none) and whether
	// the ore block itself drops.
	Fortune int
	DropOre bool
	// Crops: replant at age 0 after harvesting.
	Replant bool
	// Saplings: type to plant.
	Sapling string
}

// Item is one queued cell mutation. It is applied no earlier than
// ReadyAtTick.
type Item struct {
	Kind        Kind
	Actor       modelpkg.ActorID
	World       string
	Target      modelpkg.Vec3i
	ReadyAtTick uint64
	Payload     Payload
}

func BreakLogItem(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i, readyAt uint64) Item {
	return Item{Kind: BreakLog, Actor: actor, World: world, Target: pos, ReadyAtTick: readyAt}
}

func BreakLeafItem(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i, readyAt uint64) Item {
	return Item{Kind: BreakLeaf, Actor: actor, World: world, Target: pos, ReadyAtTick: readyAt}
}

func BreakOreItem(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i, readyAt uint64, fortune int, dropOre bool) Item {
	return Item{Kind: BreakOre, Actor: actor, World: world, Target: pos, ReadyAtTick: readyAt,
		Payload: Payload{Fortune: fortune, DropOre: dropOre}}
}

func HarvestCropItem(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i, readyAt uint64, replant bool) Item {
	return Item{Kind: HarvestCrop, Actor: actor, World: world, Target: pos, ReadyAtTick: readyAt,
		Payload: Payload{Replant: replant}}
}

func PlantSaplingItem(actor modelpkg.ActorID, world string, pos modelpkg.Vec3i, readyAt uint64, sapling string) Item {
	return Item{Kind: PlantSapling, Actor: actor, World: world, Target: pos, ReadyAtTick: readyAt,
		Payload: Payload{Sapling: sapling}}
}
