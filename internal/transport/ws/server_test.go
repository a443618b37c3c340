package ws

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/protocol"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/catalogs"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/activation"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/chunkloader"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/collect"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/session"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work"
	modelpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/kernel/model"
	genpkg "github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/terrain/gen"
)

type testRig struct {
	w        *world.World
	sessions *session.Machine
	sched    *work.Scheduler
	claims   *chunkloader.Registry
	hub      *Hub
	server   *Server
	srv      *httptest.Server
	url      string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	tu := tuning.Defaults()
	live := tuning.NewLive(tu)
	logger := log.New(&bytes.Buffer{}, "", 0)

	w, err := world.New(tu.World, logger)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	t.Cleanup(w.Stop)

	mats := catalogs.Default()
	sessions := session.NewMachine()
	sched := work.NewScheduler(work.Config{Env: w, Sessions: sessions, Mats: mats, Tuning: live, Logger: logger, Seed: tu.World.Seed})
	claims := chunkloader.NewRegistry(w, nil, live, logger)
	hub := NewHub(w)
	router := activation.NewRouter(activation.Config{
		Collector: collect.New(w, mats), Sessions: sessions, Work: sched, Claims: claims,
		Notifier: hub, Clock: w, Tuning: live, Logger: logger,
	})
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	s := NewServer(Config{World: w, Router: router, Claims: claims, Hub: hub, Validator: v, Logger: logger})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testRig{
		w: w, sessions: sessions, sched: sched, claims: claims, hub: hub, server: s, srv: srv,
		url: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (r *testRig) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	if err := c.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func hello(actor uuid.UUID, pos modelpkg.Vec3i) map[string]any {
	return map[string]any{
		"type": "HELLO", "protocol_version": protocol.Version,
		"actor_id": actor.String(), "name": "tester", "world": "world",
		"pos": []int{pos.X, pos.Y, pos.Z},
	}
}

func TestServer_HandshakeAndChunkCommands(t *testing.T) {
	r := newTestRig(t)
	c := r.dial(t)
	actor := uuid.New()

	send(t, c, hello(actor, modelpkg.Vec3i{X: 20, Y: genpkg.Surface + 1, Z: -5}))
	welcome := recv(t, c)
	if welcome["type"] != protocol.TypeWelcome || welcome["actor_id"] != actor.String() {
		t.Fatalf("welcome: %+v", welcome)
	}
	if int(welcome["max_claims"].(float64)) != 9 {
		t.Fatalf("max_claims: got=%v want=9", welcome["max_claims"])
	}

	send(t, c, map[string]any{"type": "CHUNK", "protocol_version": protocol.Version, "op": "claim"})
	n := recv(t, c)
	if n["type"] != protocol.TypeNotify || n["key"] != "chunk.claimed" {
		t.Fatalf("claim notify: %+v", n)
	}
	if n["text"] != "Chunk world:1:-1 claimed (1/9)." {
		t.Fatalf("claim text: got=%q", n["text"])
	}
	if !r.claims.IsClaimedBy(actor, modelpkg.ChunkKey{World: "world", X: 1, Z: -1}) {
		t.Fatalf("registry does not hold the claim")
	}

	send(t, c, map[string]any{"type": "CHUNK", "protocol_version": protocol.Version, "op": "list"})
	n = recv(t, c)
	if n["key"] != "chunk.list" || n["text"] != "Claimed chunks (1/9): world:1:-1" {
		t.Fatalf("list notify: %+v", n)
	}

	send(t, c, map[string]any{"type": "CHUNK", "protocol_version": protocol.Version, "op": "bogus"})
	if n = recv(t, c); n["key"] != "chunk.usage" {
		t.Fatalf("usage notify: %+v", n)
	}
}

func TestServer_RejectsBadMessages(t *testing.T) {
	r := newTestRig(t)
	c := r.dial(t)
	actor := uuid.New()
	send(t, c, hello(actor, modelpkg.Vec3i{Y: genpkg.Surface + 1}))
	recv(t, c)

	send(t, c, map[string]any{"type": "BREAK", "protocol_version": protocol.Version, "pos": []int{1, 2}})
	if m := recv(t, c); m["type"] != protocol.TypeError || m["code"] != protocol.ErrBadRequest {
		t.Fatalf("bad break: %+v", m)
	}
	send(t, c, map[string]any{"type": "MOVE", "protocol_version": "0.1", "pos": []int{1, 2, 3}})
	if m := recv(t, c); m["code"] != protocol.ErrProtoVersion {
		t.Fatalf("bad version: %+v", m)
	}

	// Second connection for the same actor is refused.
	c2 := r.dial(t)
	send(t, c2, hello(actor, modelpkg.Vec3i{Y: genpkg.Surface + 1}))
	if m := recv(t, c2); m["code"] != protocol.ErrActorOnline {
		t.Fatalf("duplicate actor: %+v", m)
	}
}

func TestServer_HandshakeRequiresHello(t *testing.T) {
	r := newTestRig(t)
	c := r.dial(t)
	send(t, c, map[string]any{"type": "MOVE", "protocol_version": protocol.Version, "pos": []int{0, 0, 0}})
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := c.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestServer_BreakFallsBackToSingleCell(t *testing.T) {
	r := newTestRig(t)
	c := r.dial(t)
	actor := uuid.New()
	target := modelpkg.Vec3i{X: 3, Y: genpkg.Surface - 3, Z: 3}
	send(t, c, hello(actor, modelpkg.Vec3i{X: 3, Y: genpkg.Surface + 1, Z: 3}))
	recv(t, c)

	before, ok := r.w.CellAt("world", target)
	if !ok || before.IsAir() {
		t.Fatalf("target cell: %+v ok=%v", before, ok)
	}
	send(t, c, map[string]any{
		"type": "BREAK", "protocol_version": protocol.Version,
		"pos": []int{target.X, target.Y, target.Z}, "tool": map[string]any{"type": "DIAMOND_SHOVEL"},
	})
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.w.Flush()
		if cell, _ := r.w.CellAt("world", target); cell.IsAir() {
			if got := r.w.Inventory(actor)[before.Type]; got != 1 {
				t.Fatalf("drop: got=%d want=1", got)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cell %v was not broken", target)
}

func TestServer_SneakAxeFellsTree(t *testing.T) {
	r := newTestRig(t)
	var base modelpkg.Vec3i
	found := false
	for gx := 0; gx < 64 && !found; gx++ {
		base, _, found = r.w.Generator().TreeNear(gx*8, 0)
	}
	if !found {
		t.Fatalf("no generated tree")
	}
	c := r.dial(t)
	actor := uuid.New()
	send(t, c, hello(actor, base))
	recv(t, c)

	axe := map[string]any{"type": "IRON_AXE"}
	send(t, c, map[string]any{"type": "SNEAK", "protocol_version": protocol.Version, "sneaking": true, "tool": axe})
	if n := recv(t, c); n["key"] != "fell.ready" {
		t.Fatalf("sneak notify: %+v", n)
	}
	send(t, c, map[string]any{
		"type": "BREAK", "protocol_version": protocol.Version,
		"pos": []int{base.X, base.Y, base.Z}, "tool": axe,
	})

	deadline := time.Now().Add(5 * time.Second)
	started := false
	for time.Now().Before(deadline) {
		r.w.Flush()
		active := r.sessions.IsActive(actor)
		if active {
			started = true
		}
		if started && !active {
			if r.w.Inventory(actor)["OAK_LOG"]+r.w.Inventory(actor)["BIRCH_LOG"]+r.w.Inventory(actor)["SPRUCE_LOG"] < 2 {
				t.Fatalf("fell dropped too few logs: %+v", r.w.Inventory(actor))
			}
			return
		}
		r.w.StepOnce()
	}
	t.Fatalf("fell did not complete: started=%v", started)
}

func TestServer_ChunkCommandsRateLimited(t *testing.T) {
	r := newTestRig(t)
	c := r.dial(t)
	send(t, c, hello(uuid.New(), modelpkg.Vec3i{Y: genpkg.Surface + 1}))
	recv(t, c)

	for i := 0; i < chunkCmdMax; i++ {
		send(t, c, map[string]any{"type": "CHUNK", "protocol_version": protocol.Version, "op": "info"})
		if n := recv(t, c); n["key"] != "chunk.info.unclaimed" {
			t.Fatalf("info %d: %+v", i, n)
		}
	}
	send(t, c, map[string]any{"type": "CHUNK", "protocol_version": protocol.Version, "op": "info"})
	if m := recv(t, c); m["code"] != protocol.ErrRateLimit {
		t.Fatalf("expected rate limit, got %+v", m)
	}
}

func TestServer_BreakRacingDisconnectLeavesNoWork(t *testing.T) {
	for _, breakFirst := range []bool{true, false} {
		r := newTestRig(t)
		g := r.w.Generator()
		var base modelpkg.Vec3i
		found := false
		for gx := 0; gx < 64 && !found; gx++ {
			base, _, found = g.TreeNear(gx*8, 0)
		}
		if !found {
			t.Fatalf("no generated tree found")
		}

		actor := uuid.New()
		if err := r.w.Join(actor, "tester", "world", base); err != nil {
			t.Fatalf("join: %v", err)
		}
		c := &conn{actor: actor, out: make(chan []byte, 8), sneaking: true}
		if !r.hub.attach(actor, c.out) {
			t.Fatalf("attach failed")
		}

		// Hold the tree's region so the BREAK sits in its queue.
		release := make(chan struct{})
		r.w.RunOnRegionOf("world", base, func() { <-release })
		r.server.handleBreak(c, protocol.BreakMsg{
			Pos:  [3]int{base.X, base.Y, base.Z},
			Tool: protocol.ToolRef{Type: "IRON_AXE"},
		})
		if breakFirst {
			close(release)
			r.w.Flush()
			if !r.sessions.IsActive(actor) {
				t.Fatalf("fell did not start before disconnect")
			}
			r.server.disconnect(c)
		} else {
			r.server.disconnect(c)
			close(release)
			r.w.Flush()
		}
		for i := 0; i < 5; i++ {
			r.w.StepOnce()
		}

		if r.sessions.IsActive(actor) {
			t.Fatalf("breakFirst=%v: actor left Active after disconnect", breakFirst)
		}
		if loops, pending := r.sched.Stats(); loops != 0 || pending != 0 {
			t.Fatalf("breakFirst=%v: scheduler loops=%d pending=%d", breakFirst, loops, pending)
		}
		if r.hub.Online() != 0 {
			t.Fatalf("breakFirst=%v: hub still holds the actor", breakFirst)
		}
	}
}
