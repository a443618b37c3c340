package collect

import (
	miningpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work/mining"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

// IsHarvestableOre reports whether tool yields drops from the ore at pos.
func (c *Collector) IsHarvestableOre(world string, pos modelpkg.Vec3i, tool modelpkg.Tool) bool {
	cell, ok := c.env.CellAt(world, pos)
	if !ok {
		return false
	}
	ore, isOre := c.mats.Ore(cell.Type)
	return isOre && miningpkg.CanHarvest(tool.Type, ore.RequiredTier)
}

// Vein collects face-connected ores of the origin's family, deepslate
// variants included. Nothing is returned when the tool cannot harvest the
// origin.
func (c *Collector) Vein(world string, origin modelpkg.Vec3i, tool modelpkg.Tool, maxOres int) []modelpkg.Vec3i {
	start, ok := c.env.CellAt(world, origin)
	if !ok {
		return nil
	}
	ore, isOre := c.mats.Ore(start.Type)
	if !isOre || !miningpkg.CanHarvest(tool.Type, ore.RequiredTier) {
		return nil
	}
	return Flood(c.env, world, origin, start, maxOres, Rule{
		Accept: func(_ modelpkg.Cell, _ modelpkg.Vec3i, cell modelpkg.Cell) bool {
			o, ok := c.mats.Ore(cell.Type)
			return ok && o.Family == ore.Family
		},
		Adjacency: func(modelpkg.Cell) []modelpkg.Vec3i { return FaceOffsets },
	})
}
