package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/logic/mathx"
)

// ChunkSize is the edge length of a chunk column in cells.
const ChunkSize = 16

// ChunkKey identifies a chunk column across restarts. It is comparable and
// is used directly as a map key.
type ChunkKey struct {
	World string
	X     int
	Z     int
}

func ChunkKeyOf(world string, pos Vec3i) ChunkKey {
	return ChunkKey{
		World: world,
		X:     mathx.FloorDiv(pos.X, ChunkSize),
		Z:     mathx.FloorDiv(pos.Z, ChunkSize),
	}
}

// String returns the persisted form "world:x:z".
func (k ChunkKey) String() string {
	return k.World + ":" + strconv.Itoa(k.X) + ":" + strconv.Itoa(k.Z)
}

// Less orders keys by world, then x, then z.
func (k ChunkKey) Less(o ChunkKey) bool {
	if k.World != o.World {
		return k.World < o.World
	}
	if k.X != o.X {
		return k.X < o.X
	}
	return k.Z < o.Z
}

func ParseChunkKey(s string) (ChunkKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ChunkKey{}, fmt.Errorf("chunk key %q: want world:x:z", s)
	}
	world := strings.TrimSpace(parts[0])
	if world == "" {
		return ChunkKey{}, fmt.Errorf("chunk key %q: empty world", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ChunkKey{}, fmt.Errorf("chunk key %q: x: %w", s, err)
	}
	z, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return ChunkKey{}, fmt.Errorf("chunk key %q: z: %w", s, err)
	}
	return ChunkKey{World: world, X: x, Z: z}, nil
}
