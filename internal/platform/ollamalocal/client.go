// Package ollamalocal talks to a locally hosted Ollama daemon. It is the
// offline side-path next to the hosted OpenAI backend: one text prompt in,
// one completion out, no retries and no file staging.
package ollamalocal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/telansky/multigpt/internal/observability"
	"github.com/telansky/multigpt/internal/platform/envutil"
	"github.com/telansky/multigpt/internal/platform/logger"
)

type Config struct {
	URL     string
	Model   string
	Timeout time.Duration

	Temperature float64
	NumCtx      int
	TopK        int
	NumPredict  int

	// MaxContextChars caps the prompt before it is sent; local models
	// degrade badly when fed arbitrarily large transcripts.
	MaxContextChars int
}

// ConfigFromEnv leaves URL empty when OLLAMA_URL is unset: the local
// route is opt-in and reports itself unconfigured otherwise.
func ConfigFromEnv() Config {
	return Config{
		URL:             envutil.Str("OLLAMA_URL", ""),
		Model:           envutil.Str("OLLAMA_MODEL", "deepseek-llm:7b"),
		Timeout:         envutil.Seconds("OLLAMA_TIMEOUT_SECONDS", 300*time.Second),
		Temperature:     envutil.Float("OLLAMA_TEMPERATURE", 0.4),
		NumCtx:          envutil.Int("OLLAMA_NUM_CTX", 4096),
		TopK:            envutil.Int("OLLAMA_TOP_K", 5),
		NumPredict:      envutil.Int("OLLAMA_NUM_PREDICT", -1),
		MaxContextChars: envutil.Int("OLLAMA_MAX_CONTEXT_CHARS", 24000),
	}
}

// Client answers plain-text prompts against the configured local model.
type Client interface {
	Ask(ctx context.Context, query, system string) (string, error)
}

type client struct {
	log    *logger.Logger
	api    *ollama.Client
	cfg    Config
	hostID string
}

func NewClient(cfg Config, log *logger.Logger) (Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("OLLAMA_URL is not configured")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("OLLAMA_MODEL is not configured")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_URL %q: %w", cfg.URL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &client{
		log:    log.With("service", "OllamaClient"),
		api:    ollama.NewClient(u, httpClient),
		cfg:    cfg,
		hostID: u.Host,
	}, nil
}

func (c *client) Ask(ctx context.Context, query, system string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query required")
	}
	query = capRunes(query, c.cfg.MaxContextChars)

	req := &ollama.GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: query,
		System: system,
		Options: map[string]interface{}{
			"temperature": c.cfg.Temperature,
			"num_ctx":     c.cfg.NumCtx,
			"top_k":       c.cfg.TopK,
			"num_predict": c.cfg.NumPredict,
		},
	}

	var (
		text strings.Builder
		last ollama.GenerateResponse
	)
	start := time.Now()
	err := c.api.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		if gr.Response != "" {
			text.WriteString(gr.Response)
		}
		last = gr
		return nil
	})
	dur := time.Since(start)

	if m := observability.Current(); m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.ObserveLLMRequest(c.cfg.Model, "ollama_generate", status, dur, last.PromptEvalCount, last.EvalCount)
	}
	if err != nil {
		return "", fmt.Errorf("ollama generate (%s at %s): %w", c.cfg.Model, c.hostID, err)
	}

	answer := strings.TrimSpace(text.String())
	if answer == "" {
		return "", fmt.Errorf("ollama returned an empty completion")
	}
	c.log.Debug("ollama completion finished",
		"model", c.cfg.Model,
		"duration_ms", dur.Milliseconds(),
		"done_reason", last.DoneReason,
	)
	return answer, nil
}

// capRunes truncates at a rune boundary so multi-byte characters survive.
func capRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
