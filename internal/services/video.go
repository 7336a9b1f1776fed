package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/platform/localmedia"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/openai"
)

// VideoSummaryService demuxes an uploaded video to mono 16kHz wav with
// ffmpeg, transcribes the audio track and summarises the transcript.
type VideoSummaryService interface {
	Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error)
}

type videoSummaryService struct {
	log      *logger.Logger
	oai      openai.Client
	media    localmedia.Tools
	sttModel string
}

func NewVideoSummaryService(oai openai.Client, media localmedia.Tools, sttModel string, log *logger.Logger) VideoSummaryService {
	return &videoSummaryService{
		log:      log.With("service", "VideoSummaryService"),
		oai:      oai,
		media:    media,
		sttModel: sttModel,
	}
}

func (s *videoSummaryService) Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error) {
	videoPath, cleanupVideo, err := s.media.WriteTempFile(ctx, upload.Data, filepath.Ext(upload.Name))
	if err != nil {
		return "", fmt.Errorf("stage video file: %w", err)
	}
	defer cleanupVideo()

	// The wav sits next to the staged video; both are removed independently
	// so a failed demux never strands the other file.
	audioPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".wav"
	defer func() { _ = os.Remove(audioPath) }()

	if _, err := s.media.ExtractAudioFromVideo(ctx, videoPath, audioPath, localmedia.AudioExtractOptions{
		SampleRateHz: 16000,
		Channels:     1,
	}); err != nil {
		return "", fmt.Errorf("extract audio track: %w", err)
	}

	return transcribeAndSummarise(ctx, s.oai, s.sttModel, audioPath, prompt, model)
}
