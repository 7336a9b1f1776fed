package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/filekind"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/openai"
)

// ImageSummaryService sends an uploaded image to a vision-capable model as a
// base64 data URL. Nothing touches disk; the bytes go straight into the
// request body.
type ImageSummaryService interface {
	Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error)
}

type imageSummaryService struct {
	log *logger.Logger
	oai openai.Client
}

func NewImageSummaryService(oai openai.Client, log *logger.Logger) ImageSummaryService {
	return &imageSummaryService{
		log: log.With("service", "ImageSummaryService"),
		oai: oai,
	}
}

func (s *imageSummaryService) Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error) {
	ext := filepath.Ext(upload.Name)
	if ext == "" {
		ext = ".png"
	}
	mime := filekind.ImageMIME(ext)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(upload.Data))

	res, err := s.oai.Generate(ctx, openai.GenerateRequest{
		Model: model,
		Parts: []openai.Part{
			openai.TextPart(prompt),
			openai.ImagePart(dataURL),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
