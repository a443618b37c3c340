package store

import (
	"sort"

	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

func (s *ChunkStore) chunk(key modelpkg.ChunkKey) *Chunk {
	if v, ok := s.chunks.Load(key); ok {
		return v.(*Chunk)
	}
	v, _ := s.chunks.LoadOrStore(key, &Chunk{Key: key, delta: map[modelpkg.Vec3i]modelpkg.Cell{}})
	return v.(*Chunk)
}

func (s *ChunkStore) peek(key modelpkg.ChunkKey) (*Chunk, bool) {
	v, ok := s.chunks.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Chunk), true
}

func (s *ChunkStore) key(pos modelpkg.Vec3i) modelpkg.ChunkKey {
	return modelpkg.ChunkKeyOf(s.World, pos)
}

// Get returns the cell at pos. ok=false when its chunk is not live.
func (s *ChunkStore) Get(pos modelpkg.Vec3i) (modelpkg.Cell, bool) {
	ch, ok := s.peek(s.key(pos))
	if !ok || !ch.live.Load() {
		return modelpkg.Cell{}, false
	}
	ch.mu.RLock()
	c, changed := ch.delta[pos]
	ch.mu.RUnlock()
	if changed {
		return c, true
	}
	return s.Gen.CellAt(s.World, pos), true
}

// Set writes a cell. Writing the generated value drops the delta entry.
func (s *ChunkStore) Set(pos modelpkg.Vec3i, cell modelpkg.Cell) {
	if cell.Type == "" {
		cell.Type = modelpkg.Air
	}
	ch := s.chunk(s.key(pos))
	gen := s.Gen.CellAt(s.World, pos)
	ch.mu.Lock()
	if gen == cell {
		delete(ch.delta, pos)
	} else {
		ch.delta[pos] = cell
	}
	ch.mu.Unlock()
}

func (s *ChunkStore) IsLive(key modelpkg.ChunkKey) bool {
	ch, ok := s.peek(key)
	return ok && ch.live.Load()
}

// Touch loads the chunk if needed and records access at tick.
func (s *ChunkStore) Touch(key modelpkg.ChunkKey, tick uint64) {
	ch := s.chunk(key)
	ch.lastTouch.Store(tick)
	if ch.live.CompareAndSwap(false, true) {
		s.live.Add(1)
	}
}

func (s *ChunkStore) AddTicket(key modelpkg.ChunkKey, tick uint64) {
	ch := s.chunk(key)
	ch.tickets.Add(1)
	s.Touch(key, tick)
}

func (s *ChunkStore) RemoveTicket(key modelpkg.ChunkKey) {
	ch, ok := s.peek(key)
	if !ok {
		return
	}
	if ch.tickets.Add(-1) < 0 {
		ch.tickets.Store(0)
	}
}

func (s *ChunkStore) Tickets(key modelpkg.ChunkKey) int {
	ch, ok := s.peek(key)
	if !ok {
		return 0
	}
	return ch.Tickets()
}

// UnloadIdle drops liveness of ticketless chunks untouched since before
// idleBefore, except those for which keep returns true. Returns the number
// unloaded.
func (s *ChunkStore) UnloadIdle(idleBefore uint64, keep func(modelpkg.ChunkKey) bool) int {
	n := 0
	s.chunks.Range(func(k, v any) bool {
		ch := v.(*Chunk)
		if !ch.live.Load() || ch.tickets.Load() > 0 || ch.lastTouch.Load() >= idleBefore {
			return true
		}
		if keep != nil && keep(ch.Key) {
			return true
		}
		if ch.live.CompareAndSwap(true, false) {
			s.live.Add(-1)
			n++
		}
		return true
	})
	return n
}

func (s *ChunkStore) LiveCount() int { return int(s.live.Load()) }

// LiveChunkKeys returns live keys ordered by x, then z.
func (s *ChunkStore) LiveChunkKeys() []modelpkg.ChunkKey {
	var keys []modelpkg.ChunkKey
	s.chunks.Range(func(k, v any) bool {
		if v.(*Chunk).live.Load() {
			keys = append(keys, k.(modelpkg.ChunkKey))
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
