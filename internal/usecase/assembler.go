package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
)

// ErrEmptyScript is returned when the service answered with blank text.
var ErrEmptyScript = errors.New("generation service returned an empty script")

// GenerateFinalScript weaves the four selected components into one script.
func (s *Stages) GenerateFinalScript(ctx context.Context, videoIdea string, selected domain.SelectedContent) (string, error) {
	idea, err := domain.NormalizeIdea(videoIdea)
	if err != nil {
		return "", err
	}
	if err := selected.Validate(); err != nil {
		return "", err
	}
	if s.generator == nil {
		return "", errors.New("generation service is not configured")
	}

	text, err := s.generator.Generate(ctx, ports.GenerateRequest{
		System:      systemPrompt,
		Prompt:      assemblePrompt(idea, selected),
		Format:      ports.FormatText,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("generate final script: %w", err)
	}

	script := strings.TrimSpace(text)
	if script == "" {
		return "", ErrEmptyScript
	}
	return script, nil
}
