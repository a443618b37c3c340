package claimstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// YAMLFile keeps claims in a single human-editable file:
//
//	claims:
//	  <actor uuid>:
//	    - world:12:-3
type YAMLFile struct {
	path string
	log  *log.Logger
}

type yamlDoc struct {
	Claims map[string][]string `yaml:"claims"`
}

// rawDoc defers decoding of each actor's list so one bad entry does not
// fail the whole file.
type rawDoc struct {
	Claims map[string]yaml.Node `yaml:"claims"`
}

func NewYAMLFile(path string, logger *log.Logger) *YAMLFile {
	if logger == nil {
		logger = log.Default()
	}
	return &YAMLFile{path: path, log: logger}
}

func (f *YAMLFile) Path() string { return f.path }

// Load returns an empty map when the file does not exist yet. Entries that
// are not plain strings are skipped with a warning; a file that is not valid
// YAML is an error.
func (f *YAMLFile) Load() (map[string][]string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc rawDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	out := make(map[string][]string, len(doc.Claims))
	for actor, node := range doc.Claims {
		if node.Kind != yaml.SequenceNode {
			f.log.Printf("claimstore: %s: claims of %s are not a list (line %d), skipping", f.path, actor, node.Line)
			continue
		}
		keys := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				f.log.Printf("claimstore: %s: skipping non-string claim of %s (line %d)", f.path, actor, item.Line)
				continue
			}
			keys = append(keys, item.Value)
		}
		out[actor] = keys
	}
	return out, nil
}

// Save writes through a temp file and rename so a crash never leaves a
// truncated file behind.
func (f *YAMLFile) Save(claims map[string][]string) error {
	if claims == nil {
		claims = map[string][]string{}
	}
	b, err := yaml.Marshal(yamlDoc{Claims: claims})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
