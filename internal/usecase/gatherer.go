package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
	"ScriptWriter/internal/structured"
)

var sourcesSchema = structured.MustCompile(`{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["title", "link", "snippet"],
    "properties": {
      "title": {"type": "string"},
      "link": {"type": "string"},
      "snippet": {"type": "string"}
    }
  }
}`)

type rawSource struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// GatherSources asks the generation service for research sources. It never
// returns an error: call and parse failures yield FallbackSources instead.
func (s *Stages) GatherSources(ctx context.Context, videoIdea string) ([]domain.Source, error) {
	idea, err := domain.NormalizeIdea(videoIdea)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.gatherAttempts; attempt++ {
		sources, err := s.gatherOnce(ctx, idea)
		if err == nil {
			s.debug("sources gathered", "count", len(sources), "attempt", attempt)
			return sources, nil
		}
		lastErr = err
		s.warn("gather sources attempt failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	s.warn("using fallback sources", "error", lastErr)
	return FallbackSources(idea), nil
}

func (s *Stages) gatherOnce(ctx context.Context, idea string) ([]domain.Source, error) {
	if s.generator == nil {
		return nil, errors.New("generation service is not configured")
	}

	text, err := s.generator.Generate(ctx, ports.GenerateRequest{
		System:      systemPrompt,
		Prompt:      gatherPrompt(idea),
		Format:      ports.FormatJSONArray,
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("generate sources: %w", err)
	}

	var raw []rawSource
	if err := structured.Decode(text, sourcesSchema, &raw); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	sources := make([]domain.Source, 0, len(raw))
	for i, r := range raw {
		sources = append(sources, domain.Source{
			ID:      fmt.Sprintf("source-%d", i),
			Title:   strings.TrimSpace(r.Title),
			Link:    strings.TrimSpace(r.Link),
			Snippet: strings.TrimSpace(r.Snippet),
		})
	}
	return sources, nil
}

// FallbackSources is the fixed pair of generic sources used when gathering fails.
func FallbackSources(videoIdea string) []domain.Source {
	return []domain.Source{
		{
			ID:      "fallback-1",
			Title:   fmt.Sprintf("General research on %s", videoIdea),
			Link:    "https://www.google.com/search?q=" + url.QueryEscape(videoIdea),
			Snippet: fmt.Sprintf("An overview of common advice, statistics and expert opinions about %s.", videoIdea),
		},
		{
			ID:      "fallback-2",
			Title:   fmt.Sprintf("Practical tips for %s", videoIdea),
			Link:    "https://en.wikipedia.org/wiki/Special:Search?search=" + url.QueryEscape(videoIdea),
			Snippet: fmt.Sprintf("Actionable, experience-based guidance and frequently asked questions about %s.", videoIdea),
		},
	}
}
