package ports

import (
	"context"

	"ScriptWriter/internal/domain"
)

// ResponseFormat hints the shape of the expected answer.
type ResponseFormat int

const (
	FormatText ResponseFormat = iota
	FormatJSONObject
	FormatJSONArray
)

// JSON reports whether the answer is expected to be a JSON document.
func (f ResponseFormat) JSON() bool {
	return f == FormatJSONObject || f == FormatJSONArray
}

// GenerateRequest is a single prompt sent to the text generation service.
type GenerateRequest struct {
	System      string
	Prompt      string
	Format      ResponseFormat
	Temperature float64
	MaxTokens   int
}

// TextGenerator is the external generation service (Gemini, ChatGPT, etc.).
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Stages bundles the four network-calling pipeline steps driven by the controller.
type Stages interface {
	GatherSources(ctx context.Context, videoIdea string) ([]domain.Source, error)
	ExtractContent(ctx context.Context, sources []domain.Source) ([]domain.Source, error)
	GenerateComponents(ctx context.Context, videoIdea string, sources []domain.Source) (*domain.ComponentSet, error)
	GenerateFinalScript(ctx context.Context, videoIdea string, selected domain.SelectedContent) (string, error)
}

// PageFetcher loads a readable excerpt of a source link.
type PageFetcher interface {
	Excerpt(ctx context.Context, link string) (string, error)
}

// ScriptRepository archives completed runs.
type ScriptRepository interface {
	Save(ctx context.Context, record domain.ScriptRecord) error
	List(ctx context.Context, limit int) ([]domain.ScriptRecord, error)
}

// Publisher pushes finished scripts to Telegram or other channels.
type Publisher interface {
	PublishScript(ctx context.Context, record domain.ScriptRecord) error
}
