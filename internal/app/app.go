package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/telemetry"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Services Services
	Router   *gin.Engine

	telemetryShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	shutdown := telemetry.Init(ctx, log, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Sync()
		return nil, fmt.Errorf("create upload dir %s: %w", cfg.UploadDir, err)
	}

	clientset, err := wireClients(ctx, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, clientset)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, serviceset)
	router := wireRouter(cfg, handlerset)

	return &App{
		Log:               log,
		Cfg:               cfg,
		Clients:           clientset,
		Services:          serviceset,
		Router:            router,
		telemetryShutdown: shutdown,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting server", "addr", a.Cfg.Addr)
	return a.Router.Run(a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetryShutdown(ctx); err != nil {
			a.Log.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
