package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/persistence/indexdb"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/transport/ws"
)

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/v1/ws", a.ws.Handler())

	if a.cfg.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("GET /admin/status", loopbackOnly(a.handleStatus))
		mux.HandleFunc("POST /admin/modules/{name}/{action}", loopbackOnly(a.handleModule))
	} else {
		a.log.Printf("admin endpoints disabled (EU_ENABLE_ADMIN_HTTP=false)")
	}
	if a.cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

type statusResponse struct {
	Tick     uint64            `json:"tick"`
	Modules  map[string]bool   `json:"modules"`
	World    world.Stats       `json:"world"`
	Claims   claimStatus       `json:"claims"`
	Work     workStatus        `json:"work"`
	Sessions int               `json:"active_sessions"`
	Clients  ws.HubStats       `json:"clients"`
	Index    *indexdb.Stats    `json:"index,omitempty"`
	Backend  map[string]string `json:"backend"`
}

type claimStatus struct {
	Total     int `json:"total"`
	PerPlayer int `json:"max_per_player"`
}

type workStatus struct {
	Loops        int    `json:"loops"`
	Pending      int    `json:"pending"`
	AppliedTotal uint64 `json:"applied_total"`
}

func (a *app) status() statusResponse {
	loops, pending := a.work.Stats()
	resp := statusResponse{
		Tick:     a.world.CurrentTick(),
		Modules:  moduleFlags(a.tune.Get().Modules),
		World:    a.world.Stats(),
		Claims:   claimStatus{Total: a.claims.TotalClaimed(), PerPlayer: a.claims.MaxClaims()},
		Work:     workStatus{Loops: loops, Pending: pending, AppliedTotal: a.work.AppliedTotal()},
		Sessions: a.sessions.ActiveCount(),
		Clients:  a.hub.Stats(),
		Backend:  map[string]string{"claims": a.cfg.ClaimBackend},
	}
	if a.stores.index != nil {
		st := a.stores.index.Stats()
		resp.Index = &st
	}
	return resp
}

func moduleFlags(m tuning.Modules) map[string]bool {
	return map[string]bool{
		tuning.ModuleTreeFeller:  m.TreeFeller.Enabled,
		tuning.ModuleVeinMiner:   m.VeinMiner.Enabled,
		tuning.ModuleAutoFarm:    m.AutoFarm.Enabled,
		tuning.ModuleChunkLoader: m.ChunkLoader.Enabled,
	}
}

func (a *app) handleStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(a.status())
}

func (a *app) handleModule(rw http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var enabled bool
	switch r.PathValue("action") {
	case "enable":
		enabled = true
	case "disable":
	default:
		http.Error(rw, "action must be enable or disable", http.StatusBadRequest)
		return
	}
	if err := a.tune.SetModuleEnabled(name, enabled); err != nil {
		http.Error(rw, err.Error(), http.StatusNotFound)
		return
	}
	a.log.Printf("module %s enabled=%t", name, enabled)
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "modules": moduleFlags(a.tune.Get().Modules)})
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	st := a.status()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP eu_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE eu_world_tick gauge\n")
	fmt.Fprintf(rw, "eu_world_tick %d\n", st.Tick)

	fmt.Fprintf(rw, "# HELP eu_online_actors Actors currently in the world.\n")
	fmt.Fprintf(rw, "# TYPE eu_online_actors gauge\n")
	fmt.Fprintf(rw, "eu_online_actors %d\n", st.World.OnlineActors)

	fmt.Fprintf(rw, "# HELP eu_live_chunks Loaded chunk count.\n")
	fmt.Fprintf(rw, "# TYPE eu_live_chunks gauge\n")
	fmt.Fprintf(rw, "eu_live_chunks %d\n", st.World.LiveChunks)

	fmt.Fprintf(rw, "# HELP eu_regions Region goroutines started.\n")
	fmt.Fprintf(rw, "# TYPE eu_regions gauge\n")
	fmt.Fprintf(rw, "eu_regions %d\n", st.World.Regions)

	fmt.Fprintf(rw, "# HELP eu_claimed_chunks Total claimed chunks across all actors.\n")
	fmt.Fprintf(rw, "# TYPE eu_claimed_chunks gauge\n")
	fmt.Fprintf(rw, "eu_claimed_chunks %d\n", st.Claims.Total)

	fmt.Fprintf(rw, "# HELP eu_active_sessions Actors with a bulk operation in progress.\n")
	fmt.Fprintf(rw, "# TYPE eu_active_sessions gauge\n")
	fmt.Fprintf(rw, "eu_active_sessions %d\n", st.Sessions)

	fmt.Fprintf(rw, "# HELP eu_work_pending Queued work items.\n")
	fmt.Fprintf(rw, "# TYPE eu_work_pending gauge\n")
	fmt.Fprintf(rw, "eu_work_pending %d\n", st.Work.Pending)

	fmt.Fprintf(rw, "# HELP eu_work_loops Running per-actor work loops.\n")
	fmt.Fprintf(rw, "# TYPE eu_work_loops gauge\n")
	fmt.Fprintf(rw, "eu_work_loops %d\n", st.Work.Loops)

	fmt.Fprintf(rw, "# HELP eu_work_applied_total Work items applied.\n")
	fmt.Fprintf(rw, "# TYPE eu_work_applied_total counter\n")
	fmt.Fprintf(rw, "eu_work_applied_total %d\n", st.Work.AppliedTotal)

	fmt.Fprintf(rw, "# HELP eu_module_enabled Module switch state.\n")
	fmt.Fprintf(rw, "# TYPE eu_module_enabled gauge\n")
	for _, name := range tuning.ModuleNames {
		v := 0
		if st.Modules[name] {
			v = 1
		}
		fmt.Fprintf(rw, "eu_module_enabled{module=%q} %d\n", name, v)
	}

	fmt.Fprintf(rw, "# HELP eu_notify_dropped_total Notifications dropped on full client queues.\n")
	fmt.Fprintf(rw, "# TYPE eu_notify_dropped_total counter\n")
	fmt.Fprintf(rw, "eu_notify_dropped_total %d\n", st.Clients.DropTotal)

	if st.Index != nil {
		fmt.Fprintf(rw, "# HELP eu_index_queue_depth Mutation index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE eu_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "eu_index_queue_depth %d\n", st.Index.QueueDepth)

		fmt.Fprintf(rw, "# HELP eu_index_dropped_total Mutations dropped by the index writer.\n")
		fmt.Fprintf(rw, "# TYPE eu_index_dropped_total counter\n")
		fmt.Fprintf(rw, "eu_index_dropped_total %d\n", st.Index.DropMutationTotal)
	}
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
