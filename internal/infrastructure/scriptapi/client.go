package scriptapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
)

// Client runs the pipeline stages against a remote scriptwriter server.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ ports.Stages = (*Client)(nil)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// NewClient creates a reusable HTTP client. Stage calls are long, so the
// timeout is generous; callers bound them further with ctx.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 3 * time.Minute},
	}
}

type sourcesResponse struct {
	Sources []domain.Source `json:"sources"`
}

// GatherSources calls POST /gather-sources.
func (c *Client) GatherSources(ctx context.Context, videoIdea string) ([]domain.Source, error) {
	var resp sourcesResponse
	payload := map[string]any{"videoIdea": videoIdea}
	if err := c.post(ctx, "/gather-sources", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// ExtractContent calls POST /extract-content.
func (c *Client) ExtractContent(ctx context.Context, sources []domain.Source) ([]domain.Source, error) {
	var resp sourcesResponse
	payload := map[string]any{"sources": sources}
	if err := c.post(ctx, "/extract-content", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// GenerateComponents calls POST /generate-components.
func (c *Client) GenerateComponents(ctx context.Context, videoIdea string, sources []domain.Source) (*domain.ComponentSet, error) {
	var set domain.ComponentSet
	payload := map[string]any{"videoIdea": videoIdea, "sources": sources}
	if err := c.post(ctx, "/generate-components", payload, &set); err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("generate-components: %w", err)
	}
	return &set, nil
}

// GenerateFinalScript calls POST /generate-final-script.
func (c *Client) GenerateFinalScript(ctx context.Context, videoIdea string, selected domain.SelectedContent) (string, error) {
	var resp struct {
		FinalScript string `json:"finalScript"`
	}
	payload := map[string]any{"videoIdea": videoIdea, "selectedComponents": selected}
	if err := c.post(ctx, "/generate-final-script", payload, &resp); err != nil {
		return "", err
	}
	return resp.FinalScript, nil
}

// Scripts calls GET /scripts.
func (c *Client) Scripts(ctx context.Context, limit int) ([]domain.ScriptRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/scripts?limit=%d", c.endpoint, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	var resp struct {
		Scripts []domain.ScriptRecord `json:"scripts"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Scripts, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &payload)
		return &StatusError{Status: resp.StatusCode, Message: payload.Error}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
