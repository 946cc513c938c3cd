package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
	"ScriptWriter/internal/structured"
)

// ExtractionFallbackSuffix is appended to the snippet when elaboration fails.
const ExtractionFallbackSuffix = "\n\n[Detailed content could not be generated for this source; the original snippet is used instead.]"

// ErrMalformedSources is returned when the extraction input cannot be fanned out.
var ErrMalformedSources = errors.New("malformed source list")

// ExtractContent elaborates every source in parallel. Individual failures are
// recorded on the source and never abort siblings; the result has the same
// length and order as the input.
func (s *Stages) ExtractContent(ctx context.Context, sources []domain.Source) ([]domain.Source, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	out := make([]domain.Source, len(sources))
	copy(out, sources)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range out {
		g.Go(func() error {
			out[i] = s.extractOne(ctx, out[i])
			return nil
		})
	}
	_ = g.Wait()

	extracted := 0
	for _, src := range out {
		if src.IsTextExtracted {
			extracted++
		}
	}
	s.debug("content extracted", "sources", len(out), "extracted", extracted)

	return out, nil
}

func (s *Stages) extractOne(ctx context.Context, src domain.Source) domain.Source {
	if s.generator == nil {
		return withFallback(src, "generation service is not configured")
	}

	var excerpt string
	if s.pageFetcher != nil {
		text, err := s.pageFetcher.Excerpt(ctx, src.Link)
		if err != nil {
			s.debug("page excerpt unavailable", "source", src.ID, "error", err)
		} else {
			excerpt = text
		}
	}

	text, err := s.generator.Generate(ctx, ports.GenerateRequest{
		System:      systemPrompt,
		Prompt:      extractPrompt(src, excerpt),
		Format:      ports.FormatText,
		Temperature: 0.5,
	})
	if err != nil {
		s.warn("extraction failed", "source", src.ID, "error", err)
		return withFallback(src, diagnostic(err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return withFallback(src, "empty response")
	}

	src.ExtractedText = text
	src.IsTextExtracted = true
	src.TextExtractionError = ""
	return src
}

func withFallback(src domain.Source, reason string) domain.Source {
	src.ExtractedText = src.Snippet + ExtractionFallbackSuffix
	src.IsTextExtracted = false
	src.TextExtractionError = reason
	return src
}

func diagnostic(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return structured.Truncate(err.Error(), 200)
}

func validateSources(sources []domain.Source) error {
	if len(sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrMalformedSources)
	}
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		if strings.TrimSpace(src.ID) == "" {
			return fmt.Errorf("%w: source %d has no id", ErrMalformedSources, i)
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrMalformedSources, src.ID)
		}
		seen[src.ID] = struct{}{}
	}
	return nil
}
