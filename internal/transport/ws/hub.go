package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/protocol"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
)

type clock interface {
	CurrentTick() uint64
}

// Hub maps online actors to their connection's outbound queue. It is the
// notification sink for the core.
type Hub struct {
	clock clock

	clients sync.Map // modelpkg.ActorID -> chan []byte

	sentTotal atomic.Uint64
	dropTotal atomic.Uint64
}

func NewHub(c clock) *Hub {
	return &Hub{clock: c}
}

func (h *Hub) attach(actor modelpkg.ActorID, out chan []byte) bool {
	_, loaded := h.clients.LoadOrStore(actor, out)
	return !loaded
}

func (h *Hub) detach(actor modelpkg.ActorID, out chan []byte) {
	h.clients.CompareAndDelete(actor, out)
}

// Notify queues a NOTIFY for actor. Offline actors and full queues drop the
// message.
func (h *Hub) Notify(actor modelpkg.ActorID, key string, args map[string]string) {
	v, ok := h.clients.Load(actor)
	if !ok {
		return
	}
	var tick uint64
	if h.clock != nil {
		tick = h.clock.CurrentTick()
	}
	b, err := json.Marshal(protocol.NewNotify(tick, key, args))
	if err != nil {
		return
	}
	h.send(v.(chan []byte), b)
}

func (h *Hub) send(out chan []byte, b []byte) {
	select {
	case out <- b:
		h.sentTotal.Add(1)
	default:
		h.dropTotal.Add(1)
	}
}

func (h *Hub) Online() int {
	n := 0
	h.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

type HubStats struct {
	Connections int
	SentTotal   uint64
	DropTotal   uint64
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		Connections: h.Online(),
		SentTotal:   h.sentTotal.Load(),
		DropTotal:   h.dropTotal.Load(),
	}
}
