package work

import (
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work/mining"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/logic/mathx"
)

const (
	saplingDropOneIn = 20
	appleDropOneIn   = 200
)

// apply runs on the region goroutine owning it.Target. Items whose target no
// longer matches are skipped.
func (s *Scheduler) apply(it Item) {
	tune := s.tune.Get()
	if tune.Performance.RequireChunkLoaded && !s.env.IsChunkLive(modelpkg.ChunkKeyOf(it.World, it.Target)) {
		return
	}
	cell, ok := s.env.CellAt(it.World, it.Target)
	if !ok {
		return
	}

	var (
		next      modelpkg.Cell
		drop      string
		dropCount int
	)
	switch it.Kind {
	case BreakLog:
		if _, ok := s.mats.LogFamily(cell.Type); !ok {
			return
		}
		next = modelpkg.Cell{Type: modelpkg.Air}
		drop, dropCount = cell.Type, 1

	case BreakLeaf:
		fam, ok := s.mats.LeafFamily(cell.Type)
		if !ok {
			return
		}
		next = modelpkg.Cell{Type: modelpkg.Air}
		roll := s.roll(it.Target, 0x1eaf)
		sapling, hasSapling := s.mats.LeafSapling(cell.Type)
		switch {
		case hasSapling && roll%saplingDropOneIn == 0:
			drop, dropCount = sapling, 1
		case fam == "OAK" || fam == "DARK_OAK":
			if roll%appleDropOneIn == 1 {
				drop, dropCount = "APPLE", 1
			}
		}

	case BreakOre:
		fam, ok := s.mats.Ore(cell.Type)
		if !ok {
			return
		}
		next = modelpkg.Cell{Type: modelpkg.Air}
		if it.Payload.DropOre {
			drop, dropCount = cell.Type, 1
		} else {
			mult := mining.FortuneMultiplier(it.Payload.Fortune, uint64(s.roll(it.Target, 0x0e1e)))
			drop, dropCount = fam.Drop, fam.DropCount*mult
		}

	case HarvestCrop:
		crop, ok := s.mats.Crop(cell.Type)
		if !ok || cell.Age < crop.MaxAge {
			return
		}
		next = modelpkg.Cell{Type: modelpkg.Air}
		if it.Payload.Replant {
			next = modelpkg.Cell{Type: cell.Type, Age: 0}
		}
		drop, dropCount = crop.Drop, 1

	case PlantSapling:
		if !cell.IsAir() || it.Payload.Sapling == "" {
			return
		}
		below, ok := s.env.CellAt(it.World, it.Target.Below())
		if !ok || !s.mats.IsSoil(below.Type) {
			return
		}
		next = modelpkg.Cell{Type: it.Payload.Sapling}

	default:
		return
	}

	s.env.SetCell(it.World, it.Target, next)
	if drop != "" && dropCount > 0 {
		s.env.DropItems(it.Actor, it.World, it.Target, drop, dropCount)
	}
	s.applied.Add(1)

	if s.audit != nil {
		err := s.audit.WriteMutation(MutationEntry{
			Tick:      s.env.CurrentTick(),
			Actor:     it.Actor.String(),
			Kind:      it.Kind.String(),
			World:     it.World,
			Pos:       it.Target.ToArray(),
			From:      cell.Type,
			To:        next.Type,
			Drop:      drop,
			DropCount: dropCount,
		})
		if err != nil {
			s.log.Printf("audit write failed: %v", err)
		}
	}
}

func (s *Scheduler) roll(pos modelpkg.Vec3i, salt int64) int {
	return int(mathx.Hash3(s.seed^salt, pos.X, pos.Y, pos.Z) % 1_000_003)
}
