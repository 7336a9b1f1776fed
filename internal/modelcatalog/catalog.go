// Package modelcatalog declares which upstream model ids the gateway
// accepts and what each one can do. The catalog ships embedded and can
// be swapped at deploy time without a rebuild.
package modelcatalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telansky/multigpt/internal/platform/logger"
)

const catalogPathEnv = "MODEL_CATALOG_YAML"

//go:embed models.yaml
var catalogFS embed.FS

// Model describes one selectable upstream model.
type Model struct {
	ID string `yaml:"id"`
	// Vision marks models that accept image and file parts.
	Vision bool `yaml:"vision"`
	// Transcribe marks speech-to-text models; they are valid for the
	// transcription step only and are rejected as answer models.
	Transcribe bool `yaml:"transcribe"`
}

type yamlCatalog struct {
	Catalog    string  `yaml:"catalog"`
	Version    int     `yaml:"version"`
	Default    string  `yaml:"default"`
	STTDefault string  `yaml:"stt_default"`
	Models     []Model `yaml:"models"`
}

// Catalog is immutable after load and safe for concurrent readers.
type Catalog struct {
	defaultModel string
	sttDefault   string
	models       map[string]Model
	order        []string
}

// fallback used when the YAML is missing or invalid
var fallbackModels = []Model{
	{ID: "gpt-4o-mini", Vision: true},
	{ID: "gpt-4o", Vision: true},
	{ID: "gpt-5-mini", Vision: true},
	{ID: "gpt-5", Vision: true},
	{ID: "gpt-4o-mini-transcribe", Transcribe: true},
	{ID: "gpt-4o-transcribe", Transcribe: true},
}

const (
	fallbackDefault    = "gpt-4o-mini"
	fallbackSTTDefault = "gpt-4o-mini-transcribe"
)

// Load reads the catalog from MODEL_CATALOG_YAML when set, otherwise the
// embedded file. A broken catalog logs a warning and falls back to the
// built-in set instead of taking the server down.
func Load(log *logger.Logger) *Catalog {
	cat, err := load()
	if err != nil {
		if log != nil {
			log.Warn("model catalog load failed; using built-in defaults", "error", err)
		}
		return fallbackCatalog()
	}
	return cat
}

func load() (*Catalog, error) {
	data, err := readCatalogFile()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func readCatalogFile() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(catalogPathEnv)); path != "" {
		return os.ReadFile(path)
	}
	return catalogFS.ReadFile("models.yaml")
}

// Parse builds a Catalog from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var spec yamlCatalog
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := validate(&spec); err != nil {
		return nil, err
	}
	cat := &Catalog{
		defaultModel: strings.TrimSpace(spec.Default),
		sttDefault:   strings.TrimSpace(spec.STTDefault),
		models:       make(map[string]Model, len(spec.Models)),
		order:        make([]string, 0, len(spec.Models)),
	}
	for _, m := range spec.Models {
		m.ID = strings.TrimSpace(m.ID)
		cat.models[m.ID] = m
		cat.order = append(cat.order, m.ID)
	}
	if cat.sttDefault == "" {
		cat.sttDefault = fallbackSTTDefault
	}
	return cat, nil
}

func validate(spec *yamlCatalog) error {
	if spec == nil {
		return errors.New("missing catalog")
	}
	if strings.TrimSpace(spec.Catalog) != "models" {
		return fmt.Errorf("unexpected catalog kind: %s", spec.Catalog)
	}
	if len(spec.Models) == 0 {
		return errors.New("no models defined")
	}
	seen := map[string]bool{}
	for _, m := range spec.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return errors.New("model id is required")
		}
		if seen[id] {
			return fmt.Errorf("duplicate model id: %s", id)
		}
		seen[id] = true
	}
	def := strings.TrimSpace(spec.Default)
	if def == "" {
		return errors.New("default model is required")
	}
	if !seen[def] {
		return fmt.Errorf("default model %s not in catalog", def)
	}
	for _, m := range spec.Models {
		if strings.TrimSpace(m.ID) == def && m.Transcribe {
			return fmt.Errorf("default model %s is transcription-only", def)
		}
	}
	return nil
}

func fallbackCatalog() *Catalog {
	cat := &Catalog{
		defaultModel: fallbackDefault,
		sttDefault:   fallbackSTTDefault,
		models:       make(map[string]Model, len(fallbackModels)),
		order:        make([]string, 0, len(fallbackModels)),
	}
	for _, m := range fallbackModels {
		cat.models[m.ID] = m
		cat.order = append(cat.order, m.ID)
	}
	return cat
}

// Default is the answer model used when a request names none.
func (c *Catalog) Default() string { return c.defaultModel }

// STTDefault is the transcription model for the audio and video pipelines.
func (c *Catalog) STTDefault() string { return c.sttDefault }

func (c *Catalog) Lookup(id string) (Model, bool) {
	m, ok := c.models[strings.TrimSpace(id)]
	return m, ok
}

// IDs returns model ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// SupportsVision reports whether id accepts image or file parts.
func (c *Catalog) SupportsVision(id string) bool {
	m, ok := c.Lookup(id)
	return ok && m.Vision
}

// IsTranscribeOnly reports whether id may only be used for the
// transcription step. The "-transcribe" suffix rule backstops catalogs
// that omit STT entries.
func (c *Catalog) IsTranscribeOnly(id string) bool {
	if m, ok := c.Lookup(id); ok {
		return m.Transcribe
	}
	return strings.HasSuffix(strings.TrimSpace(id), "-transcribe")
}
