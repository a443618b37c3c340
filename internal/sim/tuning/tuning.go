package tuning

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

const TicksPerSecond = 20

type Tuning struct {
	Modules     Modules     `yaml:"modules"`
	Performance Performance `yaml:"performance"`
	World       World       `yaml:"world"`
}

type Modules struct {
	TreeFeller  TreeFeller  `yaml:"tree_feller"`
	VeinMiner   VeinMiner   `yaml:"vein_miner"`
	AutoFarm    AutoFarm    `yaml:"auto_farm"`
	ChunkLoader ChunkLoader `yaml:"chunk_loader"`
}

type TreeFeller struct {
	Enabled         bool `yaml:"enabled"`
	MaxBlocks       int  `yaml:"max_blocks"`
	ReplantSaplings bool `yaml:"replant_saplings"`
}

type VeinMiner struct {
	Enabled           bool `yaml:"enabled"`
	MaxOres           int  `yaml:"max_ores"`
	FortuneEnabled    bool `yaml:"fortune_enabled"`
	SilkTouchDropsOre bool `yaml:"silk_touch_drops_ore"`
}

type AutoFarm struct {
	Enabled     bool `yaml:"enabled"`
	Radius      int  `yaml:"radius"`
	AutoReplant bool `yaml:"auto_replant"`
}

type ChunkLoader struct {
	Enabled                   bool `yaml:"enabled"`
	MaxChunksPerPlayer        int  `yaml:"max_chunks_per_player"`
	ValidationIntervalSeconds int  `yaml:"validation_interval_seconds"`
	ClaimOnFarm               bool `yaml:"claim_on_farm"`
}

type Performance struct {
	BlocksPerTick      int  `yaml:"blocks_per_tick"`
	RequireChunkLoaded bool `yaml:"require_chunk_loaded"`
}

type World struct {
	TickRateHz      int      `yaml:"tick_rate_hz"`
	Worlds          []string `yaml:"worlds"`
	RegionChunks    int      `yaml:"region_chunks"`
	IdleUnloadTicks int      `yaml:"idle_unload_ticks"`
	ViewChunks      int      `yaml:"view_chunks"`
	Seed            int64    `yaml:"seed"`
}

func Defaults() Tuning {
	return Tuning{
		Modules: Modules{
			TreeFeller:  TreeFeller{Enabled: true, MaxBlocks: 200, ReplantSaplings: true},
			VeinMiner:   VeinMiner{Enabled: true, MaxOres: 64, FortuneEnabled: true, SilkTouchDropsOre: true},
			AutoFarm:    AutoFarm{Enabled: true, Radius: 4, AutoReplant: true},
			ChunkLoader: ChunkLoader{Enabled: true, MaxChunksPerPlayer: 9, ValidationIntervalSeconds: 300, ClaimOnFarm: true},
		},
		Performance: Performance{BlocksPerTick: 32, RequireChunkLoaded: true},
		World: World{
			TickRateHz:      TicksPerSecond,
			Worlds:          []string{"world", "world_nether", "world_the_end"},
			RegionChunks:    8,
			IdleUnloadTicks: 600,
			ViewChunks:      2,
			Seed:            1337,
		},
	}
}

// Load reads tuning.yaml over the defaults; keys absent from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.Performance.BlocksPerTick <= 0 {
		t.Performance.BlocksPerTick = 32
	}
	if t.World.TickRateHz <= 0 {
		t.World.TickRateHz = TicksPerSecond
	}
	if t.World.RegionChunks <= 0 {
		t.World.RegionChunks = 8
	}
	if t.World.ViewChunks < 0 {
		t.World.ViewChunks = 0
	}
	if t.Modules.ChunkLoader.ValidationIntervalSeconds <= 0 {
		t.Modules.ChunkLoader.ValidationIntervalSeconds = 300
	}
	seen := map[string]bool{}
	worlds := t.World.Worlds[:0]
	for _, w := range t.World.Worlds {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		worlds = append(worlds, w)
	}
	t.World.Worlds = worlds
}

func (t Tuning) Validate() error {
	if t.Modules.TreeFeller.MaxBlocks < 0 {
		return fmt.Errorf("modules.tree_feller.max_blocks must be >= 0")
	}
	if t.Modules.VeinMiner.MaxOres < 0 {
		return fmt.Errorf("modules.vein_miner.max_ores must be >= 0")
	}
	if t.Modules.AutoFarm.Radius < 0 {
		return fmt.Errorf("modules.auto_farm.radius must be >= 0")
	}
	if t.Modules.ChunkLoader.MaxChunksPerPlayer < 0 {
		return fmt.Errorf("modules.chunk_loader.max_chunks_per_player must be >= 0")
	}
	if len(t.World.Worlds) == 0 {
		return fmt.Errorf("world.worlds must not be empty")
	}
	for _, w := range t.World.Worlds {
		if strings.Contains(w, ":") {
			return fmt.Errorf("world name %q must not contain ':'", w)
		}
	}
	return nil
}

// ValidationIntervalTicks converts the configured validation interval to ticks.
func (c ChunkLoader) ValidationIntervalTicks() uint64 {
	return uint64(c.ValidationIntervalSeconds) * TicksPerSecond
}

// Module names accepted by SetModuleEnabled.
const (
	ModuleTreeFeller  = "treefeller"
	ModuleVeinMiner   = "veinminer"
	ModuleAutoFarm    = "autofarm"
	ModuleChunkLoader = "chunkloader"
)

var ModuleNames = []string{ModuleTreeFeller, ModuleVeinMiner, ModuleAutoFarm, ModuleChunkLoader}

// Live holds the effective tuning. Readers get a consistent copy; writers
// swap the whole value.
type Live struct {
	v atomic.Pointer[Tuning]
}

func NewLive(t Tuning) *Live {
	l := &Live{}
	l.Set(t)
	return l
}

func (l *Live) Get() Tuning {
	if p := l.v.Load(); p != nil {
		return *p
	}
	return Defaults()
}

func (l *Live) Set(t Tuning) {
	t.World.Worlds = append([]string(nil), t.World.Worlds...)
	l.v.Store(&t)
}

// SetModuleEnabled toggles one module by name. Concurrent toggles of
// different modules all land.
func (l *Live) SetModuleEnabled(name string, enabled bool) error {
	for {
		cur := l.v.Load()
		t := Defaults()
		if cur != nil {
			t = *cur
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ModuleTreeFeller:
			t.Modules.TreeFeller.Enabled = enabled
		case ModuleVeinMiner:
			t.Modules.VeinMiner.Enabled = enabled
		case ModuleAutoFarm:
			t.Modules.AutoFarm.Enabled = enabled
		case ModuleChunkLoader:
			t.Modules.ChunkLoader.Enabled = enabled
		default:
			return fmt.Errorf("unknown module: %s", name)
		}
		t.World.Worlds = append([]string(nil), t.World.Worlds...)
		if l.v.CompareAndSwap(cur, &t) {
			return nil
		}
	}
}
