package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/telansky/multigpt/internal/domain"
	"github.com/telansky/multigpt/internal/platform/apierr"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/services"
)

type AskHandler struct {
	log            *logger.Logger
	ask            services.AskService
	maxUploadBytes int64
}

func NewAskHandler(ask services.AskService, maxUploadBytes int64, log *logger.Logger) *AskHandler {
	return &AskHandler{
		log:            log.With("handler", "AskHandler"),
		ask:            ask,
		maxUploadBytes: maxUploadBytes,
	}
}

// normalizeField trims a form value and drops the literal "string"
// placeholder Swagger UI sends for fields left untouched.
func normalizeField(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "string") {
		return ""
	}
	return v
}

// POST /api/ask
// Multipart form: query?, prompt?, model?, file?. A file-derived answer
// comes back as a text/plain body, a text-only answer as {"answer": ...}.
func (h *AskHandler) Ask(c *gin.Context) {
	query := normalizeField(c.PostForm("query"))
	prompt := normalizeField(c.PostForm("prompt"))
	model := normalizeField(c.PostForm("model"))

	// Swagger can send "file" as an empty string part or a part with an
	// empty filename; both mean no upload.
	var upload *domain.Upload
	if fh, err := c.FormFile("file"); err == nil && fh != nil && strings.TrimSpace(fh.Filename) != "" {
		if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
			RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Errorf("upload is %d bytes, limit is %d", fh.Size, h.maxUploadBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "unreadable_upload", err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "unreadable_upload", err)
			return
		}
		upload = &domain.Upload{Name: fh.Filename, Data: data}
	}

	res, err := h.ask.Ask(c.Request.Context(), domain.AskRequest{
		Query:  query,
		Prompt: prompt,
		Model:  model,
		Upload: upload,
	})
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			RespondError(c, ae.Status, ae.Code, ae.Err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "ask_failed", err)
		return
	}

	if res.Category != "" {
		c.String(http.StatusOK, res.Answer)
		return
	}
	RespondOK(c, gin.H{"answer": res.Answer})
}
