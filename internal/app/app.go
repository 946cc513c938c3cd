package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ScriptWriter/internal/api"
	"ScriptWriter/internal/config"
	"ScriptWriter/internal/infrastructure/llm"
	"ScriptWriter/internal/infrastructure/storage"
	"ScriptWriter/internal/infrastructure/telegram"
	"ScriptWriter/internal/infrastructure/web"
	"ScriptWriter/internal/logging"
	"ScriptWriter/internal/pipeline"
	"ScriptWriter/internal/ports"
	"ScriptWriter/internal/usecase"
)

// Application wires configs to stage handlers, storage and transport.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	stages       *usecase.Stages
	credentialed bool
	archive      *storage.SQLiteRepository
	publisher    ports.Publisher
}

// Options tweak which adapters New opens.
type Options struct {
	// SkipArchive leaves the SQLite archive closed.
	SkipArchive bool
}

// New builds the application from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	registry := llm.NewRegistry()
	if cfg.Generation.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.Generation.Gemini)
		if err != nil {
			return nil, err
		}
		registry.Register(gemini)
	}
	if cfg.Generation.ChatGPT.APIKey != "" {
		registry.Register(llm.NewChatGPTClient(cfg.Generation.ChatGPT))
	}

	var generator ports.TextGenerator
	credentialed := false
	if gen, err := registry.Resolve(cfg.Generation.Provider); err != nil {
		baseLogger.Warn("generation provider unavailable",
			"provider", cfg.Generation.Provider, "registered", registry.Names(), "error", err)
	} else {
		generator = llm.NewLimitedGenerator(gen,
			cfg.Generation.RequestsPerSecond, cfg.Generation.Burst, cfg.Generation.RequestTimeout)
		credentialed = cfg.Generation.Credentialed()
	}

	var fetcher ports.PageFetcher
	if cfg.Pipeline.FetchPages {
		fetcher = web.NewPageFetcher(nil, cfg.Pipeline.PageExcerptChars)
	}

	stages := usecase.NewStages(usecase.StageDeps{
		Generator:             generator,
		PageFetcher:           fetcher,
		Logger:                baseLogger.With("component", "stages"),
		GatherAttempts:        cfg.Pipeline.GatherAttempts,
		ExtractionConcurrency: cfg.Pipeline.ExtractionConcurrency,
	})

	a := &Application{
		cfg:          cfg,
		logger:       baseLogger,
		stages:       stages,
		credentialed: credentialed,
	}

	if !opts.SkipArchive && cfg.Storage.Path != "" {
		archive, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open script archive: %w", err)
		}
		a.archive = archive
	}

	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		a.publisher = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	return a, nil
}

// Credentialed reports whether the configured provider can be called.
func (a *Application) Credentialed() bool {
	return a.credentialed
}

// Stages returns the in-process stage handlers.
func (a *Application) Stages() ports.Stages {
	return a.stages
}

// Archive returns the script archive; nil when it was skipped.
func (a *Application) Archive() ports.ScriptRepository {
	if a.archive == nil {
		return nil
	}
	return a.archive
}

// NewController builds a pipeline controller over stages. Completed runs are
// archived and published by whichever adapters are configured.
func (a *Application) NewController(stages ports.Stages) *pipeline.Controller {
	return pipeline.NewController(pipeline.ControllerDeps{
		Stages:    stages,
		Archive:   a.Archive(),
		Publisher: a.publisher,
		Logger:    a.logger.With("component", "controller"),
	})
}

// Router builds the HTTP handler for the stage endpoints.
func (a *Application) Router() *gin.Engine {
	return api.NewRouter(api.Deps{
		Stages:       a.stages,
		Archive:      a.Archive(),
		Credentialed: a.credentialed,
		Logger:       a.logger.With("component", "api"),
	})
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr, "credentialed", a.credentialed)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases storage handles.
func (a *Application) Close() error {
	if a.archive == nil {
		return nil
	}
	return a.archive.Close()
}
