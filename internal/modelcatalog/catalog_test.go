package modelcatalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	t.Setenv("MODEL_CATALOG_YAML", "")
	cat, err := load()
	if err != nil {
		t.Fatalf("load embedded: unexpected error: %v", err)
	}
	if cat.Default() != "gpt-4o-mini" {
		t.Fatalf("default: want=%q got=%q", "gpt-4o-mini", cat.Default())
	}
	if cat.STTDefault() != "gpt-4o-mini-transcribe" {
		t.Fatalf("stt default: want=%q got=%q", "gpt-4o-mini-transcribe", cat.STTDefault())
	}
	if _, ok := cat.Lookup("gpt-5"); !ok {
		t.Fatalf("lookup gpt-5: want=found")
	}
	if _, ok := cat.Lookup("nonexistent-model"); ok {
		t.Fatalf("lookup nonexistent: want=missing")
	}
}

func TestVisionAndTranscribeFlags(t *testing.T) {
	cat := Load(nil)
	if !cat.SupportsVision("gpt-4o") {
		t.Fatalf("gpt-4o vision: want=true")
	}
	if !cat.SupportsVision("gpt-5-mini") {
		t.Fatalf("gpt-5-mini vision: want=true")
	}
	if cat.SupportsVision("gpt-4o-mini-transcribe") {
		t.Fatalf("transcribe model vision: want=false")
	}
	if !cat.IsTranscribeOnly("gpt-4o-mini-transcribe") {
		t.Fatalf("IsTranscribeOnly(gpt-4o-mini-transcribe): want=true")
	}
	if cat.IsTranscribeOnly("gpt-4o-mini") {
		t.Fatalf("IsTranscribeOnly(gpt-4o-mini): want=false")
	}
	// Suffix rule covers ids a trimmed catalog never listed.
	if !cat.IsTranscribeOnly("whisper-large-transcribe") {
		t.Fatalf("IsTranscribeOnly by suffix: want=true")
	}
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"wrong kind", "catalog: nope\ndefault: a\nmodels:\n  - id: a\n"},
		{"no models", "catalog: models\ndefault: a\n"},
		{"empty id", "catalog: models\ndefault: a\nmodels:\n  - id: \"\"\n"},
		{"duplicate id", "catalog: models\ndefault: a\nmodels:\n  - id: a\n  - id: a\n"},
		{"missing default", "catalog: models\nmodels:\n  - id: a\n"},
		{"unknown default", "catalog: models\ndefault: b\nmodels:\n  - id: a\n"},
		{"transcribe default", "catalog: models\ndefault: a\nmodels:\n  - id: a\n    transcribe: true\n"},
	}
	for _, tc := range cases {
		if _, err := Parse([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: want=error got=nil", tc.name)
		}
	}
}

func TestLoadFallsBackOnBadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte("catalog: nope\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	t.Setenv("MODEL_CATALOG_YAML", path)
	cat := Load(nil)
	if cat.Default() != fallbackDefault {
		t.Fatalf("fallback default: want=%q got=%q", fallbackDefault, cat.Default())
	}
	if !cat.SupportsVision("gpt-4o") {
		t.Fatalf("fallback vision: want=true")
	}
}

func TestLoadHonorsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	override := `catalog: models
default: local-chat
models:
  - id: local-chat
  - id: local-vision
    vision: true
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	t.Setenv("MODEL_CATALOG_YAML", path)
	cat := Load(nil)
	if cat.Default() != "local-chat" {
		t.Fatalf("override default: want=%q got=%q", "local-chat", cat.Default())
	}
	if cat.SupportsVision("local-chat") {
		t.Fatalf("local-chat vision: want=false")
	}
	if !cat.SupportsVision("local-vision") {
		t.Fatalf("local-vision vision: want=true")
	}
	if got := len(cat.IDs()); got != 2 {
		t.Fatalf("ids: want=2 got=%d", got)
	}
}
