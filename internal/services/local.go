package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/telansky/multigpt/internal/platform/apierr"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/ollamalocal"
	"github.com/telansky/multigpt/internal/platform/promptstyle"
)

// LocalAnswerService answers text queries against the locally hosted model.
// It mirrors the text path of AskService but never leaves the host.
type LocalAnswerService interface {
	Answer(ctx context.Context, query, prompt string) (string, error)
}

type localAnswerService struct {
	log    *logger.Logger
	ollama ollamalocal.Client
}

func NewLocalAnswerService(ollama ollamalocal.Client, log *logger.Logger) LocalAnswerService {
	return &localAnswerService{
		log:    log.With("service", "LocalAnswerService"),
		ollama: ollama,
	}
}

func (s *localAnswerService) Answer(ctx context.Context, query, prompt string) (string, error) {
	if s.ollama == nil {
		return "", apierr.New(http.StatusServiceUnavailable, "local_model_unconfigured",
			fmt.Errorf("local model backend is not configured"))
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apierr.New(http.StatusUnprocessableEntity, "missing_query",
			fmt.Errorf("Provide a non-empty query."))
	}
	system := promptstyle.Choose(prompt)

	answer, err := s.ollama.Ask(ctx, query, system)
	if err != nil {
		return "", fmt.Errorf("local model call: %w", err)
	}
	return answer, nil
}
