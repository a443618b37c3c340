package store

import (
	"sync"
	"sync/atomic"

	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	genpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/terrain/gen"
)

// Chunk holds the cells that differ from the generator plus the chunk's
// keep-alive state. Cells are written by the owning region goroutine and
// may be read from anywhere.
type Chunk struct {
	Key modelpkg.ChunkKey

	mu    sync.RWMutex
	delta map[modelpkg.Vec3i]modelpkg.Cell

	tickets   atomic.Int32
	live      atomic.Bool
	lastTouch atomic.Uint64
}

func (c *Chunk) Tickets() int { return int(c.tickets.Load()) }

func (c *Chunk) Live() bool { return c.live.Load() }

// Modified reports how many cells differ from generated terrain.
func (c *Chunk) Modified() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.delta)
}

// ChunkStore is the cell storage of one world.
type ChunkStore struct {
	World string
	Gen   genpkg.Generator

	chunks sync.Map // modelpkg.ChunkKey -> *Chunk
	live   atomic.Int64
}

func NewChunkStore(world string, gen genpkg.Generator) *ChunkStore {
	return &ChunkStore{World: world, Gen: gen}
}
