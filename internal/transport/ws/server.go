package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/protocol"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/activation"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/chunkloader"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/logic/rates"
	genpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/terrain/gen"
)

const (
	defaultQueue = 32
	maxQueue     = 256

	// Chunk commands touch the claim store, so they are rate limited per
	// connection.
	chunkCmdWindowTicks = 20
	chunkCmdMax         = 5
)

type Config struct {
	World     *world.World
	Router    *activation.Router
	Claims    *chunkloader.Registry
	Hub       *Hub
	Validator *protocol.Validator
	Logger    *log.Logger
}

type Server struct {
	world    *world.World
	router   *activation.Router
	claims   *chunkloader.Registry
	hub      *Hub
	validate *protocol.Validator
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		world:    cfg.World,
		router:   cfg.Router,
		claims:   cfg.Claims,
		hub:      cfg.Hub,
		validate: cfg.Validator,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// conn is the per-connection input state the router needs but the world
// does not track.
type conn struct {
	actor modelpkg.ActorID
	out   chan []byte

	mu        sync.Mutex
	sneaking  bool
	lastTool  modelpkg.Tool
	chunkCmds rates.Window
}

func (c *conn) setSneaking(v bool) {
	c.mu.Lock()
	c.sneaking = v
	c.mu.Unlock()
}

func (c *conn) input() (bool, modelpkg.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sneaking, c.lastTool
}

func (c *conn) allowChunkCmd(now uint64) (bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunkCmds.Allow(now)
}

func (c *conn) setTool(t modelpkg.Tool) {
	c.mu.Lock()
	c.lastTool = t
	c.mu.Unlock()
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		c := s.handshake(ws)
		if c == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := ws.ReadMessage()
			if err != nil {
				break
			}
			s.dispatch(c, msg)
		}

		cancel()
		<-done
		s.disconnect(c)
		s.log.Printf("actor %s left", c.actor)
	}
}

// disconnect takes the actor offline before purging its work. A BREAK still
// queued on a region then finds the actor offline, and its EnsureLoop resets
// the session instead of leaving a loop nothing will drain.
func (s *Server) disconnect(c *conn) {
	s.world.Leave(c.actor)
	s.hub.detach(c.actor, c.out)
	s.router.HandleQuit(c.actor)
}

func (s *Server) handshake(ws *websocket.Conn) *conn {
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(ws, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrProtoVersion, "protocol_version must be "+protocol.Version))
		closeWith(ws, "bad protocol_version")
		return nil
	}
	if err := s.validate.Validate(protocol.TypeHello, msg); err != nil {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		closeWith(ws, "bad HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	actor, err := uuid.Parse(hello.ActorID)
	if err != nil {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrProtoBadRequest, "actor_id: "+err.Error()))
		return nil
	}
	if hello.Name == "" {
		hello.Name = "actor"
	}
	worldName := strings.TrimSpace(hello.World)
	if worldName == "" {
		worldName = s.world.Worlds()[0]
	}
	if !s.world.WorldExists(worldName) {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrWorldNotFound, "unknown world "+worldName))
		return nil
	}
	pos := modelpkg.Vec3i{X: hello.Pos[0], Y: hello.Pos[1], Z: hello.Pos[2]}
	if pos == (modelpkg.Vec3i{}) {
		pos = modelpkg.Vec3i{Y: genpkg.Surface + 1}
	}

	q := hello.MaxQueue
	if q <= 0 {
		q = defaultQueue
	}
	if q > maxQueue {
		q = maxQueue
	}
	c := &conn{
		actor:     actor,
		out:       make(chan []byte, q),
		chunkCmds: rates.Window{Length: chunkCmdWindowTicks, Max: chunkCmdMax},
	}

	if !s.hub.attach(actor, c.out) {
		_ = writeJSON(ws, protocol.NewError(protocol.ErrActorOnline, "actor already connected"))
		return nil
	}
	if err := s.world.Join(actor, hello.Name, worldName, pos); err != nil {
		s.hub.detach(actor, c.out)
		_ = writeJSON(ws, protocol.NewError(protocol.ErrActorOnline, err.Error()))
		return nil
	}
	s.router.HandleJoin(actor)

	claims := s.claims.Claims(actor)
	keys := make([]string, 0, len(claims))
	for _, k := range claims {
		keys = append(keys, k.String())
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ActorID:         actor.String(),
		World:           worldName,
		Pos:             [3]int{pos.X, pos.Y, pos.Z},
		Tick:            s.world.CurrentTick(),
		TickRateHz:      s.world.TickRateHz(),
		Worlds:          s.world.Worlds(),
		MaxClaims:       s.claims.MaxClaims(),
		Claims:          keys,
	}
	if err := writeJSON(ws, welcome); err != nil {
		s.disconnect(c)
		return nil
	}
	s.log.Printf("actor %s (%s) joined %s at %v", actor, hello.Name, worldName, pos)
	return c
}

func (s *Server) dispatch(c *conn, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reject(c, protocol.ErrProtoBadRequest, "malformed json")
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.reject(c, protocol.ErrProtoVersion, "protocol_version must be "+protocol.Version)
		return
	}
	if err := s.validate.Validate(base.Type, msg); err != nil {
		s.reject(c, protocol.ErrBadRequest, err.Error())
		return
	}

	switch base.Type {
	case protocol.TypeBreak:
		var m protocol.BreakMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reject(c, protocol.ErrBadRequest, err.Error())
			return
		}
		s.handleBreak(c, m)

	case protocol.TypeSneak:
		var m protocol.SneakMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reject(c, protocol.ErrBadRequest, err.Error())
			return
		}
		if m.Tool != nil {
			c.setTool(toolOf(*m.Tool))
		}
		c.setSneaking(m.Sneaking)
		_, tool := c.input()
		s.router.HandleSneak(c.actor, m.Sneaking, tool)

	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reject(c, protocol.ErrBadRequest, err.Error())
			return
		}
		if err := s.world.Move(c.actor, vec(m.Pos)); err != nil {
			s.reject(c, protocol.ErrInvalidTarget, err.Error())
		}

	case protocol.TypeChunk:
		var m protocol.ChunkMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reject(c, protocol.ErrBadRequest, err.Error())
			return
		}
		if ok, cd := c.allowChunkCmd(s.world.CurrentTick()); !ok {
			s.reject(c, protocol.ErrRateLimit, fmt.Sprintf("too many chunk commands; retry in %d ticks", cd))
			return
		}
		w, pos, ok := s.world.Position(c.actor)
		if !ok {
			s.reject(c, protocol.ErrInternal, "actor not online")
			return
		}
		s.router.HandleChunkCommand(c.actor, m.Op, modelpkg.ChunkKeyOf(w, pos))

	default:
		s.reject(c, protocol.ErrProtoBadRequest, "unexpected "+base.Type)
	}
}

// handleBreak runs the trigger on the origin's region so the bulk decision
// and the fallback single-cell break see the same cell state.
func (s *Server) handleBreak(c *conn, m protocol.BreakMsg) {
	w, _, ok := s.world.Position(c.actor)
	if !ok {
		return
	}
	tool := toolOf(m.Tool)
	c.setTool(tool)
	sneaking, _ := c.input()
	tr := activation.Trigger{
		Actor:     c.actor,
		World:     w,
		Origin:    vec(m.Pos),
		Tool:      tool,
		Crouching: sneaking,
	}
	s.world.RunOnRegionOf(w, tr.Origin, func() {
		if s.router.HandleTrigger(tr) {
			return
		}
		s.world.BreakDefault(tr.Actor, tr.World, tr.Origin)
	})
}

func (s *Server) reject(c *conn, code, message string) {
	b, err := json.Marshal(protocol.NewError(code, message))
	if err != nil {
		return
	}
	s.hub.send(c.out, b)
}

func toolOf(t protocol.ToolRef) modelpkg.Tool {
	return modelpkg.Tool{Type: t.Type, Fortune: t.Fortune, SilkTouch: t.SilkTouch}
}

func vec(p [3]int) modelpkg.Vec3i {
	return modelpkg.Vec3i{X: p[0], Y: p[1], Z: p[2]}
}

func closeWith(ws *websocket.Conn, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(ws *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, b)
}
