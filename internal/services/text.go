package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/openai"
)

// TextAnswerService answers a plain text query with the chosen chat model.
// File uploads never reach this service; the dispatcher routes them to the
// extraction pipelines first.
type TextAnswerService interface {
	Answer(ctx context.Context, query, prompt, model string) (string, error)
}

type textAnswerService struct {
	log *logger.Logger
	oai openai.Client
}

func NewTextAnswerService(oai openai.Client, log *logger.Logger) TextAnswerService {
	return &textAnswerService{
		log: log.With("service", "TextAnswerService"),
		oai: oai,
	}
}

func (s *textAnswerService) Answer(ctx context.Context, query, prompt, model string) (string, error) {
	// The dispatcher already enforces this; guard anyway.
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("provide a non-empty query")
	}

	res, err := s.oai.Generate(ctx, openai.GenerateRequest{
		Model:  model,
		System: prompt,
		Parts:  []openai.Part{openai.TextPart(strings.TrimSpace(query))},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
