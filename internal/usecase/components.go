package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
	"ScriptWriter/internal/structured"
)

// NoResearchPlaceholder replaces the research block when no source carries text.
const NoResearchPlaceholder = "No source content is available. Use general knowledge about the topic."

// ErrMalformedComponents is returned when the service answer fails validation.
var ErrMalformedComponents = domain.ErrMalformedComponents

var componentsSchema = structured.MustCompile(componentSchemaDoc)

// GenerateComponents synthesizes hooks, bridges, golden nuggets and WTAs.
// Every failure is returned to the caller; there is no local fallback.
func (s *Stages) GenerateComponents(ctx context.Context, videoIdea string, sources []domain.Source) (*domain.ComponentSet, error) {
	idea, err := domain.NormalizeIdea(videoIdea)
	if err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, errors.New("generation service is not configured")
	}

	text, err := s.generator.Generate(ctx, ports.GenerateRequest{
		System:      systemPrompt,
		Prompt:      componentsPrompt(idea, researchContext(sources)),
		Format:      ports.FormatJSONObject,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("generate components: %w", err)
	}

	var set domain.ComponentSet
	if err := structured.Decode(text, componentsSchema, &set); err != nil {
		s.warn("component output rejected", "error", err, "raw", structured.Preview(text, 200))
		return nil, fmt.Errorf("%w: %v", ErrMalformedComponents, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	s.debug("components generated",
		"hooks", len(set.Hooks),
		"bridges", len(set.Bridges),
		"golden_nuggets", len(set.GoldenNuggets),
		"wtas", len(set.WTAs))
	return &set, nil
}

func researchContext(sources []domain.Source) string {
	var sb strings.Builder
	for _, src := range sources {
		if strings.TrimSpace(src.ExtractedText) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "SOURCE: %s (%s)\n%s", src.Title, src.Link, src.ExtractedText)
	}
	if sb.Len() == 0 {
		return NoResearchPlaceholder
	}
	return sb.String()
}
