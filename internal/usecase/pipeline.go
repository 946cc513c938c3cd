package usecase

import (
	"log/slog"

	"ScriptWriter/internal/ports"
)

// StageDeps wires all driven adapters into the stage handlers.
type StageDeps struct {
	Generator   ports.TextGenerator
	PageFetcher ports.PageFetcher
	Logger      *slog.Logger

	// GatherAttempts bounds source gathering calls before falling back.
	GatherAttempts int
	// ExtractionConcurrency caps in-flight extraction calls.
	ExtractionConcurrency int
}

// Stages implements the four scriptwriting steps in-process.
type Stages struct {
	generator      ports.TextGenerator
	pageFetcher    ports.PageFetcher
	logger         *slog.Logger
	gatherAttempts int
	concurrency    int
}

var _ ports.Stages = (*Stages)(nil)

// NewStages constructs the stage handlers.
func NewStages(deps StageDeps) *Stages {
	attempts := deps.GatherAttempts
	if attempts <= 0 {
		attempts = 1
	}
	concurrency := deps.ExtractionConcurrency
	if concurrency <= 0 {
		concurrency = 6
	}
	return &Stages{
		generator:      deps.Generator,
		pageFetcher:    deps.PageFetcher,
		logger:         deps.Logger,
		gatherAttempts: attempts,
		concurrency:    concurrency,
	}
}

func (s *Stages) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Stages) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
