package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/telansky/multigpt/internal/handlers"
	"github.com/telansky/multigpt/internal/modelcatalog"
	"github.com/telansky/multigpt/internal/observability"
	"github.com/telansky/multigpt/internal/platform/logger"
	"github.com/telansky/multigpt/internal/server"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Services Services
	Router   *gin.Engine
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("loading configuration")
	cfg := LoadConfig()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	metrics := observability.Init(log)
	catalog := modelcatalog.Load(log)

	clients, err := wireClients(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset := wireServices(clients, catalog, log)

	router := server.NewRouter(server.RouterConfig{
		AskHandler:      handlers.NewAskHandler(serviceset.Ask, cfg.MaxUploadBytes, log),
		LocalAskHandler: handlers.NewLocalAskHandler(serviceset.Local, log),
		Metrics:         metrics,
		Log:             log,
	})

	return &App{
		Log:      log,
		Cfg:      cfg,
		Clients:  clients,
		Services: serviceset,
		Router:   router,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("starting server", "addr", addr)
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
