package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/protocol"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/catalogs"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/tuning"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/activation"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/chunkloader"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/collect"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/session"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/transport/ws"
)

type app struct {
	cfg    runtimeConfig
	log    *log.Logger
	tune   *tuning.Live
	stores *backends

	world    *world.World
	sessions *session.Machine
	work     *work.Scheduler
	claims   *chunkloader.Registry
	router   *activation.Router
	hub      *ws.Hub
	ws       *ws.Server
}

func componentLogger(name string) *log.Logger {
	return log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lmicroseconds)
}

func newApp(cfg runtimeConfig, logger *log.Logger) (*app, error) {
	tune, err := loadTuning(cfg.TuningPath, logger)
	if err != nil {
		return nil, err
	}
	mats := catalogs.Default()
	if p := strings.TrimSpace(cfg.MaterialsPath); p != "" {
		if mats, err = catalogs.Load(p); err != nil {
			return nil, fmt.Errorf("load materials: %w", err)
		}
	}

	stores, err := openBackends(cfg, logger)
	if err != nil {
		return nil, err
	}

	live := tuning.NewLive(tune)
	w, err := world.New(tune.World, componentLogger("world"))
	if err != nil {
		stores.Close(logger)
		return nil, fmt.Errorf("world: %w", err)
	}

	sessions := session.NewMachine()
	sched := work.NewScheduler(work.Config{
		Env:      w,
		Sessions: sessions,
		Mats:     mats,
		Tuning:   live,
		Audit:    stores.audit,
		Logger:   componentLogger("work"),
		Seed:     tune.World.Seed,
	})
	claims := chunkloader.NewRegistry(w, stores.claims, live, componentLogger("chunkloader"))
	hub := ws.NewHub(w)
	router := activation.NewRouter(activation.Config{
		Collector: collect.New(w, mats),
		Sessions:  sessions,
		Work:      sched,
		Claims:    claims,
		Notifier:  hub,
		Clock:     w,
		Tuning:    live,
		Logger:    componentLogger("activation"),
	})
	validator, err := protocol.NewValidator()
	if err != nil {
		stores.Close(logger)
		return nil, fmt.Errorf("schemas: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      logger,
		tune:     live,
		stores:   stores,
		world:    w,
		sessions: sessions,
		work:     sched,
		claims:   claims,
		router:   router,
		hub:      hub,
		ws: ws.NewServer(ws.Config{
			World:     w,
			Router:    router,
			Claims:    claims,
			Hub:       hub,
			Validator: validator,
			Logger:    componentLogger("ws"),
		}),
	}, nil
}

func loadTuning(path string, logger *log.Logger) (tuning.Tuning, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return tuning.Defaults(), nil
	}
	t, err := tuning.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", path)
			return tuning.Defaults(), nil
		}
		return tuning.Tuning{}, fmt.Errorf("load tuning: %w", err)
	}
	return t, nil
}

// start loads persisted claims and schedules claim upkeep. The world loop
// is started separately so tests can drive ticks by hand.
func (a *app) start() {
	a.claims.Start()
	a.log.Printf("modules: %s", moduleSummary(a.tune.Get().Modules))
}

// shutdown persists claims and drops their tickets, then discards queued
// work and stops the world.
func (a *app) shutdown() {
	a.claims.Shutdown()
	a.work.Shutdown()
	a.sessions.Clear()
	a.world.Stop()
	a.stores.Close(a.log)
}

func moduleSummary(m tuning.Modules) string {
	return fmt.Sprintf("tree_feller=%t vein_miner=%t auto_farm=%t chunk_loader=%t",
		m.TreeFeller.Enabled, m.VeinMiner.Enabled, m.AutoFarm.Enabled, m.ChunkLoader.Enabled)
}
