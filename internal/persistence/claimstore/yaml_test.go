package claimstore

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestYAMLFile_RoundTrip(t *testing.T) {
	f := NewYAMLFile(filepath.Join(t.TempDir(), "data", "claims.yaml"), nil)

	empty, err := f.Load()
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing file: got=%v err=%v", empty, err)
	}

	in := map[string][]string{
		"11111111-1111-1111-1111-111111111111": {"world:5:10", "world:-2:0"},
	}
	if err := f.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := out["11111111-1111-1111-1111-111111111111"]
	if len(got) != 2 || got[0] != "world:5:10" || got[1] != "world:-2:0" {
		t.Fatalf("claims: got=%v", got)
	}
	if _, err := os.Stat(f.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestYAMLFile_HandEditedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.yaml")
	doc := strings.Join([]string{
		"claims:",
		"  not-a-uuid:",
		"    - world:1:1",
		"  22222222-2222-2222-2222-222222222222:",
		"    - world:1:2",
		"    - garbage",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := NewYAMLFile(path, nil).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// The store returns entries verbatim; validation happens in the registry.
	if len(out) != 2 || len(out["22222222-2222-2222-2222-222222222222"]) != 2 {
		t.Fatalf("raw entries: got=%v", out)
	}
}

func TestYAMLFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.yaml")
	if err := os.WriteFile(path, []byte("claims: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewYAMLFile(path, nil).Load(); err == nil {
		t.Fatalf("corrupt file accepted")
	}
}

func TestYAMLFile_SkipsNonStringEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.yaml")
	doc := strings.Join([]string{
		"claims:",
		"  11111111-1111-1111-1111-111111111111:",
		"    - world:1:1",
		"    - world:2:2",
		"  22222222-2222-2222-2222-222222222222:",
		"    - {x: 1}",
		"    - world:3:3",
		"  33333333-3333-3333-3333-333333333333: world:4:4",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	out, err := NewYAMLFile(path, log.New(&buf, "", 0)).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := out["11111111-1111-1111-1111-111111111111"]; len(got) != 2 {
		t.Fatalf("valid actor: got=%v", got)
	}
	if got := out["22222222-2222-2222-2222-222222222222"]; len(got) != 1 || got[0] != "world:3:3" {
		t.Fatalf("mixed actor: got=%v", got)
	}
	if _, ok := out["33333333-3333-3333-3333-333333333333"]; ok {
		t.Fatalf("scalar claim list accepted")
	}
	if n := strings.Count(buf.String(), "skipping"); n != 2 {
		t.Fatalf("warnings: got=%d want=2\n%s", n, buf.String())
	}
}
