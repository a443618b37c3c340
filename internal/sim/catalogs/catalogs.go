package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed materials.yaml
var defaultMaterials []byte

// Materials groups cell types into the families the collectors reason about.
// Lookups are read-only after Load and safe for concurrent use.
type Materials struct {
	Trees []TreeFamily `yaml:"trees"`
	Ores  []OreFamily  `yaml:"ores"`
	Crops []CropDef    `yaml:"crops"`
	Soil  []string     `yaml:"soil"`

	Digest string `yaml:"-"`

	logFamily  map[string]*TreeFamily
	leafFamily map[string]*TreeFamily
	oreFamily  map[string]*OreFamily
	crops      map[string]*CropDef
	soil       map[string]bool
}

type TreeFamily struct {
	Family  string   `yaml:"family"`
	Logs    []string `yaml:"logs"`
	Leaves  []string `yaml:"leaves"`
	Sapling string   `yaml:"sapling"`
}

type OreFamily struct {
	Family       string   `yaml:"family"`
	Blocks       []string `yaml:"blocks"`
	RequiredTier int      `yaml:"required_tier"`
	Drop         string   `yaml:"drop"`
	DropCount    int      `yaml:"drop_count"`
}

type CropDef struct {
	Block  string `yaml:"block"`
	MaxAge int    `yaml:"max_age"`
	Drop   string `yaml:"drop"`
}

// Default returns the built-in material table.
func Default() *Materials {
	m, err := parse(defaultMaterials)
	if err != nil {
		panic(fmt.Sprintf("embedded materials.yaml: %v", err))
	}
	return m
}

// Load reads a materials file; an empty path yields the built-in table.
func Load(path string) (*Materials, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("materials.yaml: %w", err)
	}
	return m, nil
}

func parse(raw []byte) (*Materials, error) {
	var m Materials
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	m.Digest = sha256Hex(raw)
	return &m, nil
}

func (m *Materials) index() error {
	m.logFamily = map[string]*TreeFamily{}
	m.leafFamily = map[string]*TreeFamily{}
	m.oreFamily = map[string]*OreFamily{}
	m.crops = map[string]*CropDef{}
	m.soil = map[string]bool{}

	for i := range m.Trees {
		t := &m.Trees[i]
		if t.Family == "" {
			return fmt.Errorf("trees[%d]: missing family", i)
		}
		for _, b := range t.Logs {
			if _, dup := m.logFamily[b]; dup {
				return fmt.Errorf("duplicate log %s", b)
			}
			m.logFamily[b] = t
		}
		for _, b := range t.Leaves {
			m.leafFamily[b] = t
		}
	}
	for i := range m.Ores {
		o := &m.Ores[i]
		if o.Family == "" {
			return fmt.Errorf("ores[%d]: missing family", i)
		}
		if o.DropCount <= 0 {
			o.DropCount = 1
		}
		for _, b := range o.Blocks {
			if _, dup := m.oreFamily[b]; dup {
				return fmt.Errorf("duplicate ore %s", b)
			}
			m.oreFamily[b] = o
		}
	}
	for i := range m.Crops {
		c := &m.Crops[i]
		if c.Block == "" || c.MaxAge <= 0 {
			return fmt.Errorf("crops[%d]: missing block/max_age", i)
		}
		if c.Drop == "" {
			c.Drop = c.Block
		}
		m.crops[c.Block] = c
	}
	for _, s := range m.Soil {
		m.soil[s] = true
	}
	return nil
}

// LogFamily reports the tree family of a log type.
func (m *Materials) LogFamily(cellType string) (string, bool) {
	t, ok := m.logFamily[cellType]
	if !ok {
		return "", false
	}
	return t.Family, true
}

// LeafFamily reports the tree family of a leaf type.
func (m *Materials) LeafFamily(cellType string) (string, bool) {
	t, ok := m.leafFamily[cellType]
	if !ok {
		return "", false
	}
	return t.Family, true
}

// SaplingFor returns the sapling planted in place of a felled log type.
func (m *Materials) SaplingFor(logType string) (string, bool) {
	t, ok := m.logFamily[logType]
	if !ok || t.Sapling == "" {
		return "", false
	}
	return t.Sapling, true
}

// LeafSapling returns the sapling a decaying leaf of the given type may drop.
func (m *Materials) LeafSapling(leafType string) (string, bool) {
	t, ok := m.leafFamily[leafType]
	if !ok || t.Sapling == "" {
		return "", false
	}
	return t.Sapling, true
}

func (m *Materials) Ore(cellType string) (OreFamily, bool) {
	o, ok := m.oreFamily[cellType]
	if !ok {
		return OreFamily{}, false
	}
	return *o, true
}

func (m *Materials) Crop(cellType string) (CropDef, bool) {
	c, ok := m.crops[cellType]
	if !ok {
		return CropDef{}, false
	}
	return *c, true
}

// IsMatureCrop reports whether a crop of the given type and age is ready to harvest.
func (m *Materials) IsMatureCrop(cellType string, age int) bool {
	c, ok := m.crops[cellType]
	return ok && age >= c.MaxAge
}

func (m *Materials) IsSoil(cellType string) bool { return m.soil[cellType] }

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
