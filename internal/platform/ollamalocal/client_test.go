package ollamalocal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/telansky/multigpt/internal/platform/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func testConfig(url string) Config {
	return Config{
		URL:             url,
		Model:           "deepseek-llm:7b",
		Timeout:         5 * time.Second,
		Temperature:     0.4,
		NumCtx:          4096,
		TopK:            5,
		NumPredict:      -1,
		MaxContextChars: 24000,
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	cfg := testConfig("")
	if _, err := NewClient(cfg, testLogger()); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestNewClientRejectsUnparsableURL(t *testing.T) {
	cfg := testConfig("http://[::1]:namedport")
	if _, err := NewClient(cfg, testLogger()); err == nil {
		t.Fatalf("expected error for unparsable URL")
	}
}

func TestAskAccumulatesStreamedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"deepseek-llm:7b","response":"Hello ","done":false}`)
		fmt.Fprintln(w, `{"model":"deepseek-llm:7b","response":"world.","done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":7}`)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := c.Ask(context.Background(), "  say hello  ", "You are terse.")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "Hello world." {
		t.Fatalf("answer: want=%q got=%q", "Hello world.", got)
	}
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	c, err := NewClient(testConfig("http://localhost:11434"), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Ask(context.Background(), "   ", ""); err == nil {
		t.Fatalf("expected error for blank query")
	}
}

func TestAskErrorsOnEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"model":"deepseek-llm:7b","response":"","done":true,"done_reason":"stop"}`)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Ask(context.Background(), "anything", ""); err == nil {
		t.Fatalf("expected error for empty completion")
	}
}

func TestCapRunes(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"hello", 0, "hello"},
		{strings.Repeat("a", 30), 24, strings.Repeat("a", 24)},
	}
	for _, tc := range cases {
		if got := capRunes(tc.in, tc.max); got != tc.want {
			t.Fatalf("capRunes(%q, %d): want=%q got=%q", tc.in, tc.max, tc.want, got)
		}
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, name := range []string{"OLLAMA_URL", "OLLAMA_MODEL", "OLLAMA_NUM_PREDICT", "OLLAMA_MAX_CONTEXT_CHARS"} {
		t.Setenv(name, "")
	}
	cfg := ConfigFromEnv()
	if cfg.URL != "" {
		t.Fatalf("URL must stay empty until OLLAMA_URL is set: got %s", cfg.URL)
	}
	if cfg.Model != "deepseek-llm:7b" {
		t.Fatalf("Model default: got %s", cfg.Model)
	}
	if cfg.NumPredict != -1 {
		t.Fatalf("NumPredict default: got %d", cfg.NumPredict)
	}
	if cfg.MaxContextChars != 24000 {
		t.Fatalf("MaxContextChars default: got %d", cfg.MaxContextChars)
	}
}
