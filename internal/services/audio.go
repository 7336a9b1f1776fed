package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/platform/localmedia"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/openai"
)

// AudioSummaryService transcribes an uploaded audio file and summarises the
// transcript with the chosen chat model. The original audio goes straight to
// the speech-to-text model; no demux step.
type AudioSummaryService interface {
	Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error)
}

type audioSummaryService struct {
	log      *logger.Logger
	oai      openai.Client
	media    localmedia.Tools
	sttModel string
}

func NewAudioSummaryService(oai openai.Client, media localmedia.Tools, sttModel string, log *logger.Logger) AudioSummaryService {
	return &audioSummaryService{
		log:      log.With("service", "AudioSummaryService"),
		oai:      oai,
		media:    media,
		sttModel: sttModel,
	}
}

func (s *audioSummaryService) Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error) {
	suffix := filepath.Ext(upload.Name)
	if suffix == "" {
		suffix = ".mp3"
	}
	audioPath, cleanup, err := s.media.WriteTempFile(ctx, upload.Data, suffix)
	if err != nil {
		return "", fmt.Errorf("stage audio file: %w", err)
	}
	defer cleanup()

	return transcribeAndSummarise(ctx, s.oai, s.sttModel, audioPath, prompt, model)
}

// transcribeAndSummarise runs the shared tail of the audio and video
// pipelines: speech-to-text on the staged file, then one summarisation call
// over the transcript. A transcription failure is fatal; it is never
// retried against the chat model.
func transcribeAndSummarise(ctx context.Context, oai openai.Client, sttModel, audioPath, prompt, model string) (string, error) {
	transcript, err := oai.Transcribe(ctx, audioPath, sttModel)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	res, err := oai.Generate(ctx, openai.GenerateRequest{
		Model: model,
		Parts: []openai.Part{
			openai.TextPart(prompt + "\n\nTRANSCRIPT:\n" + transcript),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
