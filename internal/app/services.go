package app

import (
	"github.com/telansky/multigpt/internal/modelcatalog"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/services"
)

type Services struct {
	Ask   services.AskService
	Local services.LocalAnswerService
}

func wireServices(clients Clients, catalog *modelcatalog.Catalog, log *logger.Logger) Services {
	sttModel := catalog.STTDefault()

	text := services.NewTextAnswerService(clients.OpenAI, log)
	audio := services.NewAudioSummaryService(clients.OpenAI, clients.Media, sttModel, log)
	video := services.NewVideoSummaryService(clients.OpenAI, clients.Media, sttModel, log)
	document := services.NewDocumentSummaryService(clients.OpenAI, clients.Media, log)
	image := services.NewImageSummaryService(clients.OpenAI, log)

	return Services{
		Ask:   services.NewAskService(catalog, text, audio, video, document, image, log),
		Local: services.NewLocalAnswerService(clients.Ollama, log),
	}
}
