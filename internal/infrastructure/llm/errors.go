package llm

import (
	"errors"
	"fmt"

	"ScriptWriter/internal/structured"
)

var (
	// ErrNotConfigured is returned when a backend lacks its API key.
	ErrNotConfigured = errors.New("generation service credential is not configured")
	// ErrEmptyResponse is returned when the backend answered without text.
	ErrEmptyResponse = errors.New("generation service returned no content")
)

// UpstreamError reports a non-2xx answer from a generation backend.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = structured.Truncate(body, 512) + "..."
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, body)
}
