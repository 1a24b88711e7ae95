// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CampaignStudio/internal/api"
	"github.com/Corphon/CampaignStudio/internal/config"
	_ "github.com/Corphon/CampaignStudio/internal/llm/providers/anthropic"
	_ "github.com/Corphon/CampaignStudio/internal/llm/providers/openrouter"
	"github.com/Corphon/CampaignStudio/internal/services"
	"github.com/Corphon/CampaignStudio/internal/storage"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

const shutdownTimeout = 30 * time.Second

// App holds the wired application. Build it with New; serve it with Run.
type App struct {
	Config   *config.AppConfig
	Logger   *utils.Logger
	Metrics  *utils.PipelineMetrics
	LLM      *services.LLMService
	Gateway  *services.GenerationGateway
	Exporter *services.ExportService
	Sessions *services.SessionService
	Hub      *api.NotificationHub
	Limiter  *api.RateLimiter
	Router   *gin.Engine

	// Data stores saved bundles; exports go to cfg.ExportDir.
	Data *storage.FileStorage
}

// Option adjusts wiring, mostly for tests.
type Option func(*options)

type options struct {
	client    services.ContentClient
	logger    *utils.Logger
	notifiers services.NotifierFactory
}

// WithContentClient replaces the client chosen from the configuration.
func WithContentClient(c services.ContentClient) Option {
	return func(o *options) { o.client = c }
}

// WithLogger replaces the global logger.
func WithLogger(l *utils.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifierFactory delivers session notifications somewhere other than the
// websocket hub.
func WithNotifierFactory(f services.NotifierFactory) Option {
	return func(o *options) { o.notifiers = f }
}

// New wires every component from cfg.
func New(cfg *config.AppConfig, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logFile := ""
		if cfg.LogDir != "" {
			logFile = filepath.Join(cfg.LogDir, "campaign-studio.log")
		}
		if err := utils.InitLogger(cfg.LogMode, logFile); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		logger = utils.GetLogger()
		logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("configuration incomplete; generation will fall back to sample content", map[string]interface{}{
			"error": err.Error(),
		})
	}

	data, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	exports, err := storage.NewFileStorage(cfg.ExportDir)
	if err != nil {
		return nil, err
	}

	metrics := utils.NewPipelineMetrics(utils.GetMetricsCollector())
	llmService := services.NewLLMService(cfg)

	client := o.client
	if client == nil {
		client, err = services.NewContentClient(cfg, llmService)
		if err != nil {
			return nil, err
		}
	}

	gateway := services.NewGenerationGateway(client,
		services.WithTimeout(cfg.GenerationTimeout()),
		services.WithMetrics(metrics),
		services.WithLogger(logger),
	)
	exporter := services.NewExportService(services.NewDirFileSink(exports, ""), nil, metrics)

	hub := api.NewNotificationHub(logger)
	notifiers := o.notifiers
	if notifiers == nil {
		notifiers = hub.Notifier
	}
	sessions := services.NewSessionService(services.SessionDeps{
		Gateway:  gateway,
		Exporter: exporter,
		Metrics:  metrics,
		Logger:   logger,
	},
		services.WithNotifierFactory(notifiers),
		services.WithDefaultTone(cfg.DefaultTone),
		services.WithSessionTTL(cfg.SessionTTL()),
	)
	sessions.OnEnd(hub.CloseSession)

	limiter := api.NewRateLimiter()
	handler := api.NewHandler(sessions, llmService, metrics, hub, logger)
	router := api.SetupRouter(handler, api.RouterOptions{
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Limiter:            limiter,
		DebugMode:          cfg.DebugMode,
	})

	logger.Info("application wired", map[string]interface{}{
		"backend":    cfg.GenerationBackend,
		"llm_ready":  llmService.IsReady(),
		"export_dir": cfg.ExportDir,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		LLM:      llmService,
		Gateway:  gateway,
		Exporter: exporter,
		Sessions: sessions,
		Hub:      hub,
		Limiter:  limiter,
		Router:   router,
		Data:     data,
	}, nil
}

// Run serves HTTP on cfg.Port until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.Config.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", a.Config.Port, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.Hub.Start()
	a.Sessions.Start()
	a.Limiter.StartCleanup(time.Minute)
	defer a.stopBackground()

	srv := &http.Server{
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", map[string]interface{}{"addr": ln.Addr().String()})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func (a *App) stopBackground() {
	a.Limiter.Stop()
	a.Sessions.Stop()
	a.Hub.Stop()
	a.Logger.Sync()
}
