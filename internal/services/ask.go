package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/filekind"
	"github.com/telansky/multigpt/internal/modelcatalog"
	"github.com/telansky/multigpt/internal/platform/apierr"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/promptstyle"
)

// AskService is the single entry point behind POST /ask: it validates the
// request against the model catalog, classifies the upload and routes it to
// the pipeline for its category. Inputs arrive already normalized (blank
// and placeholder values mapped to empty strings).
type AskService interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error)
}

type askService struct {
	log     *logger.Logger
	catalog *modelcatalog.Catalog

	text     TextAnswerService
	audio    AudioSummaryService
	video    VideoSummaryService
	document DocumentSummaryService
	image    ImageSummaryService
}

func NewAskService(
	catalog *modelcatalog.Catalog,
	text TextAnswerService,
	audio AudioSummaryService,
	video VideoSummaryService,
	document DocumentSummaryService,
	image ImageSummaryService,
	log *logger.Logger,
) AskService {
	return &askService{
		log:      log.With("service", "AskService"),
		catalog:  catalog,
		text:     text,
		audio:    audio,
		video:    video,
		document: document,
		image:    image,
	}
}

func (s *askService) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	if !req.HasUpload() && req.Query == "" {
		return nil, apierr.New(http.StatusUnprocessableEntity, "missing_query_or_file",
			fmt.Errorf("Provide at least query or file."))
	}

	model := req.Model
	if model == "" {
		model = s.catalog.Default()
	}
	if s.catalog.IsTranscribeOnly(model) {
		return nil, apierr.New(http.StatusUnprocessableEntity, "stt_model_selected",
			fmt.Errorf("Selected model is a speech-to-text model. Choose from the models provided."))
	}
	if _, ok := s.catalog.Lookup(model); !ok {
		return nil, apierr.New(http.StatusUnprocessableEntity, "unknown_model",
			fmt.Errorf("Unknown model '%s'. Choose from the models provided.", model))
	}

	prompt := promptstyle.Choose(req.Prompt)

	if !req.HasUpload() {
		answer, err := s.text.Answer(ctx, req.Query, prompt, model)
		if err != nil {
			return nil, err
		}
		return &domain.AskResult{Answer: answer, Model: model}, nil
	}

	_, category, ok := filekind.Classify(req.Upload.Name)
	if !ok {
		return nil, apierr.New(http.StatusUnprocessableEntity, "unsupported_file_type",
			fmt.Errorf("Unsupported file type. Allowed: video, audio, text, image, archive."))
	}
	s.log.Info("dispatching upload",
		"filename", req.Upload.Name,
		"category", string(category),
		"model", model,
		"size_bytes", len(req.Upload.Data),
	)

	var (
		answer string
		err    error
	)
	switch category {
	case filekind.CategoryVideo:
		answer, err = s.video.Summarise(ctx, *req.Upload, prompt, model)

	case filekind.CategoryAudio:
		answer, err = s.audio.Summarise(ctx, *req.Upload, prompt, model)

	case filekind.CategoryText:
		answer, err = s.document.Summarise(ctx, *req.Upload, prompt, model)

	case filekind.CategoryImage:
		if !s.catalog.SupportsVision(model) {
			return nil, apierr.New(http.StatusUnprocessableEntity, "model_not_vision_capable",
				fmt.Errorf("Model '%s' is not vision-capable. Select a vision model (e.g., gpt-4o or gpt-5).", model))
		}
		answer, err = s.image.Summarise(ctx, *req.Upload, prompt, model)

	case filekind.CategoryArchive:
		// Archives classify cleanly but no pipeline can extract content
		// from them.
		return nil, apierr.New(http.StatusUnprocessableEntity, "unsupported_file_type",
			fmt.Errorf("Archive files are not supported for content extraction."))

	default:
		return nil, apierr.New(http.StatusUnprocessableEntity, "unsupported_file_type",
			fmt.Errorf("Unsupported file type. Allowed: video, audio, text, image, archive."))
	}
	if err != nil {
		return nil, err
	}

	return &domain.AskResult{Answer: answer, Model: model, Category: category}, nil
}
