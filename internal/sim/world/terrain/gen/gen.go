package gen

import (
	"strings"

	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/logic/mathx"
)

// Surface is the y of the top solid layer; trees and crops stand on it.
const Surface = 63

const (
	treeGrid = 8  // one candidate tree per 8x8 columns
	farmGrid = 32 // one candidate field per 32x32 columns
	farmSize = 5
	oreGrid  = 4
)

type Dimension int

const (
	Overworld Dimension = iota
	Nether
	End
)

func DimensionOf(world string) Dimension {
	switch {
	case strings.HasSuffix(world, "_nether"):
		return Nether
	case strings.HasSuffix(world, "_the_end"):
		return End
	default:
		return Overworld
	}
}

// Generator produces the untouched content of any cell as a pure function
// of seed, world and position.
type Generator struct {
	Seed int64
}

func (g Generator) CellAt(world string, p modelpkg.Vec3i) modelpkg.Cell {
	switch DimensionOf(world) {
	case Nether:
		return g.nether(p)
	case End:
		if p.Y <= Surface {
			return modelpkg.Cell{Type: "END_STONE"}
		}
		return air
	default:
		return g.overworld(p)
	}
}

var air = modelpkg.Cell{Type: modelpkg.Air}

func (g Generator) overworld(p modelpkg.Vec3i) modelpkg.Cell {
	if p.Y > Surface {
		if c, ok := g.tree(p); ok {
			return c
		}
		if c, ok := g.crop(p); ok {
			return c
		}
		return air
	}
	if p.Y == Surface {
		if g.inField(p.X, p.Z) {
			return modelpkg.Cell{Type: "FARMLAND"}
		}
		return modelpkg.Cell{Type: "GRASS_BLOCK"}
	}
	if p.Y > Surface-4 {
		return modelpkg.Cell{Type: "DIRT"}
	}
	base := "STONE"
	prefix := ""
	if p.Y < 0 {
		base, prefix = "DEEPSLATE", "DEEPSLATE_"
	}
	if ore, ok := g.ore(p, overworldOres); ok {
		return modelpkg.Cell{Type: prefix + ore}
	}
	return modelpkg.Cell{Type: base}
}

func (g Generator) nether(p modelpkg.Vec3i) modelpkg.Cell {
	if p.Y > Surface {
		if p.Y == Surface+1 && g.inField(p.X, p.Z) {
			return modelpkg.Cell{Type: "NETHER_WART", Age: g.cropAge(p, 3)}
		}
		return air
	}
	if p.Y == Surface && g.inField(p.X, p.Z) {
		return modelpkg.Cell{Type: "SOUL_SAND"}
	}
	if ore, ok := g.ore(p, netherOres); ok {
		return modelpkg.Cell{Type: ore}
	}
	return modelpkg.Cell{Type: "NETHERRACK"}
}

type oreBand struct {
	block      string
	minY, maxY int
	permille   uint64
}

var overworldOres = []oreBand{
	{"DIAMOND_ORE", -64, 16, 20},
	{"REDSTONE_ORE", -64, 16, 40},
	{"GOLD_ORE", -64, 32, 40},
	{"LAPIS_ORE", -64, 32, 30},
	{"IRON_ORE", -64, 56, 90},
	{"COPPER_ORE", 0, 56, 80},
	{"COAL_ORE", 0, 59, 120},
	{"EMERALD_ORE", 32, 59, 10},
}

var netherOres = []oreBand{
	{"NETHER_QUARTZ_ORE", 0, Surface, 120},
	{"NETHER_GOLD_ORE", 0, Surface, 60},
}

// ore places blob-shaped clusters: a 4x4x4 cell picks at most one band,
// then roughly half of its cells become ore.
func (g Generator) ore(p modelpkg.Vec3i, bands []oreBand) (string, bool) {
	gx, gy, gz := mathx.FloorDiv(p.X, oreGrid), mathx.FloorDiv(p.Y, oreGrid), mathx.FloorDiv(p.Z, oreGrid)
	h := mathx.Hash3(g.Seed+11, gx, gy, gz)
	band := bands[h%uint64(len(bands))]
	if p.Y < band.minY || p.Y > band.maxY {
		return "", false
	}
	if (h>>16)%1000 >= band.permille {
		return "", false
	}
	if mathx.Hash3(g.Seed+12, p.X, p.Y, p.Z)%2 != 0 {
		return "", false
	}
	return band.block, true
}

var treeKinds = []string{"OAK", "BIRCH", "SPRUCE"}

// treeAt reports the trunk column and species of the tree in the grid cell
// containing (x, z). Trunks are inset so canopies stay inside their cell.
func (g Generator) treeAt(x, z int) (tx, tz, height int, kind string, ok bool) {
	gx, gz := mathx.FloorDiv(x, treeGrid), mathx.FloorDiv(z, treeGrid)
	h := mathx.Hash2(g.Seed+21, gx, gz)
	if h%100 >= 35 {
		return 0, 0, 0, "", false
	}
	tx = gx*treeGrid + 2 + int((h>>8)%4)
	tz = gz*treeGrid + 2 + int((h>>16)%4)
	if g.inField(tx, tz) {
		return 0, 0, 0, "", false
	}
	height = 4 + int((h>>24)%3)
	kind = treeKinds[(h>>32)%uint64(len(treeKinds))]
	return tx, tz, height, kind, true
}

func (g Generator) tree(p modelpkg.Vec3i) (modelpkg.Cell, bool) {
	tx, tz, height, kind, ok := g.treeAt(p.X, p.Z)
	if !ok {
		return air, false
	}
	top := Surface + height
	if p.X == tx && p.Z == tz && p.Y > Surface && p.Y <= top {
		return modelpkg.Cell{Type: kind + "_LOG"}, true
	}
	dx, dz, dy := mathx.AbsInt(p.X-tx), mathx.AbsInt(p.Z-tz), p.Y-top
	switch {
	case dy >= -1 && dy <= 0 && dx <= 2 && dz <= 2 && !(dx == 2 && dz == 2):
		return modelpkg.Cell{Type: kind + "_LEAVES"}, true
	case dy == 1 && dx <= 1 && dz <= 1:
		return modelpkg.Cell{Type: kind + "_LEAVES"}, true
	}
	return air, false
}

func (g Generator) fieldOrigin(x, z int) (fx, fz int, ok bool) {
	gx, gz := mathx.FloorDiv(x, farmGrid), mathx.FloorDiv(z, farmGrid)
	h := mathx.Hash2(g.Seed+31, gx, gz)
	if h%100 >= 40 {
		return 0, 0, false
	}
	fx = gx*farmGrid + 4 + int((h>>8)%uint64(farmGrid-farmSize-8))
	fz = gz*farmGrid + 4 + int((h>>16)%uint64(farmGrid-farmSize-8))
	return fx, fz, true
}

func (g Generator) inField(x, z int) bool {
	fx, fz, ok := g.fieldOrigin(x, z)
	return ok && x >= fx && x < fx+farmSize && z >= fz && z < fz+farmSize
}

var cropKinds = []struct {
	block  string
	maxAge int
}{{"WHEAT", 7}, {"CARROTS", 7}, {"POTATOES", 7}, {"BEETROOTS", 3}}

func (g Generator) crop(p modelpkg.Vec3i) (modelpkg.Cell, bool) {
	if p.Y != Surface+1 || !g.inField(p.X, p.Z) {
		return air, false
	}
	fx, fz, _ := g.fieldOrigin(p.X, p.Z)
	kind := cropKinds[mathx.Hash2(g.Seed+32, fx, fz)%uint64(len(cropKinds))]
	return modelpkg.Cell{Type: kind.block, Age: g.cropAge(p, kind.maxAge)}, true
}

// cropAge is mostly mature so fields are worth harvesting.
func (g Generator) cropAge(p modelpkg.Vec3i, maxAge int) int {
	if mathx.Hash3(g.Seed+33, p.X, p.Y, p.Z)%4 == 0 {
		return int(mathx.Hash3(g.Seed+34, p.X, p.Y, p.Z) % uint64(maxAge))
	}
	return maxAge
}

// TreeNear returns the trunk base of a generated tree whose grid cell
// contains (x, z).
func (g Generator) TreeNear(x, z int) (modelpkg.Vec3i, string, bool) {
	tx, tz, _, kind, ok := g.treeAt(x, z)
	if !ok {
		return modelpkg.Vec3i{}, "", false
	}
	return modelpkg.Vec3i{X: tx, Y: Surface + 1, Z: tz}, kind, true
}

// FieldNear returns the corner of a generated field whose grid cell
// contains (x, z).
func (g Generator) FieldNear(x, z int) (modelpkg.Vec3i, bool) {
	fx, fz, ok := g.fieldOrigin(x, z)
	if !ok {
		return modelpkg.Vec3i{}, false
	}
	return modelpkg.Vec3i{X: fx, Y: Surface + 1, Z: fz}, true
}
