package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telansky/multigpt/internal/platform/apierr"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/services"
)

type LocalAskHandler struct {
	log   *logger.Logger
	local services.LocalAnswerService
}

func NewLocalAskHandler(local services.LocalAnswerService, log *logger.Logger) *LocalAskHandler {
	return &LocalAskHandler{
		log:   log.With("handler", "LocalAskHandler"),
		local: local,
	}
}

type localAskRequest struct {
	Query  string `form:"query" json:"query"`
	Prompt string `form:"prompt" json:"prompt"`
}

// POST /api/ask/local
// Text-only route answered by the locally hosted model.
func (h *LocalAskHandler) Ask(c *gin.Context) {
	var req localAskRequest
	_ = c.ShouldBind(&req)

	answer, err := h.local.Answer(c.Request.Context(), normalizeField(req.Query), normalizeField(req.Prompt))
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			RespondError(c, ae.Status, ae.Code, ae.Err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "local_ask_failed", err)
		return
	}
	RespondOK(c, gin.H{"answer": answer})
}
