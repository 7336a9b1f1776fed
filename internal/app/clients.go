package app

import (
	"fmt"
	"strings"

	"github.com/telansky/multigpt/internal/platform/localmedia"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/ollamalocal"
	"github.com/telansky/multigpt/internal/platform/openai"
)

type Clients struct {
	OpenAI openai.Client
	Ollama ollamalocal.Client
	Media  localmedia.Tools
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("wiring clients")

	oai, err := openai.NewClient(cfg.OpenAI, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	media := localmedia.New(cfg.Media, log)

	// The local model route stays dark unless OLLAMA_URL is set.
	var local ollamalocal.Client
	if strings.TrimSpace(cfg.Ollama.URL) != "" {
		c, err := ollamalocal.NewClient(cfg.Ollama, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init ollama client: %w", err)
		}
		local = c
	}

	return Clients{OpenAI: oai, Ollama: local, Media: media}, nil
}
