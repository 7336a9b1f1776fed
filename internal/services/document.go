package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/observability"
	"github.com/telansky/multigpt/internal/platform/ctxutil"
	"github.com/telansky/multigpt/internal/platform/localmedia"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/platform/openai"
)

// DocumentSummaryService converts an uploaded document to PDF when needed,
// hands the PDF to the backend file store and summarises it with a
// multimodal prompt. PDFs pass through without touching the converter.
type DocumentSummaryService interface {
	Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error)
}

type documentSummaryService struct {
	log   *logger.Logger
	oai   openai.Client
	media localmedia.Tools
}

func NewDocumentSummaryService(oai openai.Client, media localmedia.Tools, log *logger.Logger) DocumentSummaryService {
	return &documentSummaryService{
		log:   log.With("service", "DocumentSummaryService"),
		oai:   oai,
		media: media,
	}
}

func (s *documentSummaryService) Summarise(ctx context.Context, upload domain.Upload, prompt, model string) (string, error) {
	// Isolated work dir so the converter's --outdir never collides with a
	// concurrent request.
	workDir, cleanupDir, err := s.media.MkWorkDir(ctx, "docsum_")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer cleanupDir()

	suffix := filepath.Ext(upload.Name)
	if suffix == "" {
		suffix = ".pdf"
	}
	srcPath := filepath.Join(workDir, "upload"+suffix)
	if err := os.WriteFile(srcPath, upload.Data, 0o644); err != nil {
		return "", fmt.Errorf("stage document: %w", err)
	}

	pdfPath := srcPath
	if !strings.EqualFold(suffix, ".pdf") {
		pdfPath, err = s.media.ConvertOfficeToPDF(ctx, srcPath, workDir)
		if err != nil {
			return "", fmt.Errorf("convert document to pdf: %w", err)
		}
	}

	pages, err := s.media.InspectPDF(pdfPath)
	if err != nil {
		return "", fmt.Errorf("validate pdf: %w", err)
	}
	s.log.Debug("document ready for upload",
		"name", upload.Name,
		"pages", pages,
		"converted", pdfPath != srcPath,
	)

	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	fileID, err := s.oai.UploadFile(ctx, filepath.Base(pdfPath), pdfBytes, openai.PurposeUserData)
	if err != nil {
		return "", fmt.Errorf("upload pdf: %w", err)
	}
	defer s.deleteRemote(ctx, fileID)

	res, err := s.oai.Generate(ctx, openai.GenerateRequest{
		Model: model,
		Parts: []openai.Part{
			openai.FilePart(fileID),
			openai.TextPart(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

// deleteRemote removes the uploaded backend file best-effort. It runs on a
// detached context so a canceled request still cleans up.
func (s *documentSummaryService) deleteRemote(ctx context.Context, fileID string) {
	dctx, cancel := context.WithTimeout(ctxutil.Detach(ctx), 30*time.Second)
	defer cancel()

	err := s.oai.DeleteFile(dctx, fileID)
	if m := observability.Current(); m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.ObserveRemoteFileCleanup(status)
	}
	if err != nil {
		s.log.Warn("remote file cleanup failed", "file_id", fileID, "error", err)
	}
}
