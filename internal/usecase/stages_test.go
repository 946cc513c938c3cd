package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type funcGenerator func(req ports.GenerateRequest) (string, error)

func (f funcGenerator) Name() string { return "func" }

func (f funcGenerator) Generate(_ context.Context, req ports.GenerateRequest) (string, error) {
	return f(req)
}

type stubFetcher struct {
	excerpt string
	err     error
}

func (s stubFetcher) Excerpt(context.Context, string) (string, error) {
	return s.excerpt, s.err
}

const validComponents = `{
  "hooks": ["h1", "h2", "h3", "h4"],
  "bridges": ["b1", "b2", "b3", "b4"],
  "golden_nuggets": [{"title": "Stack habits", "bullet_points": ["one", "two", "three"]}],
  "wtas": ["w1", "w2", "w3", "w4"]
}`

func TestGatherSourcesAssignsSequentialIDs(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req ports.GenerateRequest) bool {
		return req.Format == ports.FormatJSONArray && strings.Contains(req.Prompt, "morning routine tips")
	})).Return("```json\n[{\"title\":\"A\",\"link\":\"https://a.example\",\"snippet\":\"sa\"},"+
		"{\"title\":\"B\",\"link\":\"https://b.example\",\"snippet\":\"sb\"},"+
		"{\"title\":\"C\",\"link\":\"https://c.example\",\"snippet\":\"sc\"},"+
		"{\"title\":\"D\",\"link\":\"https://d.example\",\"snippet\":\"sd\"}]\n```", nil).Once()

	stages := NewStages(StageDeps{Generator: gen})
	sources, err := stages.GatherSources(context.Background(), "  morning routine tips ")
	require.NoError(t, err)
	require.Len(t, sources, 4)
	for i, src := range sources {
		assert.Equal(t, fmt.Sprintf("source-%d", i), src.ID)
		assert.False(t, src.IsTextExtracted)
		assert.Empty(t, src.ExtractedText)
	}
	assert.Equal(t, "https://b.example", sources[1].Link)
	gen.AssertExpectations(t)
}

func TestGatherSourcesFallsBack(t *testing.T) {
	cases := map[string]funcGenerator{
		"network error": func(ports.GenerateRequest) (string, error) { return "", errors.New("connection reset") },
		"invalid json":  func(ports.GenerateRequest) (string, error) { return "here are some sources: [", nil },
		"empty array":   func(ports.GenerateRequest) (string, error) { return "[]", nil },
		"wrong shape":   func(ports.GenerateRequest) (string, error) { return `{"sources": []}`, nil },
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			stages := NewStages(StageDeps{Generator: gen, GatherAttempts: 2})
			sources, err := stages.GatherSources(context.Background(), "morning routine tips")
			require.NoError(t, err)
			require.Len(t, sources, 2)
			assert.Equal(t, "fallback-1", sources[0].ID)
			assert.Equal(t, "fallback-2", sources[1].ID)
		})
	}
}

func TestGatherSourcesRetriesBeforeFallback(t *testing.T) {
	var calls int32
	gen := funcGenerator(func(ports.GenerateRequest) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("flaky")
		}
		return `[{"title":"A","link":"https://a.example","snippet":"s"}]`, nil
	})

	stages := NewStages(StageDeps{Generator: gen, GatherAttempts: 2})
	sources, err := stages.GatherSources(context.Background(), "idea")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "source-0", sources[0].ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGatherSourcesRejectsEmptyIdea(t *testing.T) {
	stages := NewStages(StageDeps{})
	_, err := stages.GatherSources(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyIdea)
}

func TestExtractContentPreservesOrderWithPartialFailure(t *testing.T) {
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "TITLE: first"):
			// finish last so completion order differs from input order
			time.Sleep(30 * time.Millisecond)
			return "Paragraph one.\n\nParagraph two.", nil
		case strings.Contains(req.Prompt, "TITLE: second"):
			return "", errors.New("upstream 503")
		case strings.Contains(req.Prompt, "TITLE: third"):
			return "   ", nil
		default:
			return "Detail for " + req.Prompt[:10], nil
		}
	})

	input := []domain.Source{
		{ID: "source-0", Title: "first", Link: "https://1.example", Snippet: "one"},
		{ID: "source-1", Title: "second", Link: "https://2.example", Snippet: "two"},
		{ID: "source-2", Title: "third", Link: "https://3.example", Snippet: "three"},
		{ID: "source-3", Title: "fourth", Link: "https://4.example", Snippet: "four"},
	}

	stages := NewStages(StageDeps{Generator: gen, ExtractionConcurrency: 4})
	out, err := stages.ExtractContent(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, out, len(input))

	for i := range input {
		assert.Equal(t, input[i].ID, out[i].ID)
		assert.NotEmpty(t, out[i].ExtractedText)
	}

	assert.True(t, out[0].IsTextExtracted)
	assert.Equal(t, "Paragraph one.\n\nParagraph two.", out[0].ExtractedText)

	assert.False(t, out[1].IsTextExtracted)
	assert.Equal(t, "two"+ExtractionFallbackSuffix, out[1].ExtractedText)
	assert.Contains(t, out[1].TextExtractionError, "upstream 503")

	assert.False(t, out[2].IsTextExtracted)
	assert.Equal(t, "empty response", out[2].TextExtractionError)

	assert.True(t, out[3].IsTextExtracted)

	// input must not be mutated
	assert.Empty(t, input[0].ExtractedText)
}

func TestExtractContentDiagnosticKeepsRunesWhole(t *testing.T) {
	gen := funcGenerator(func(ports.GenerateRequest) (string, error) {
		return "", errors.New("ошибка " + strings.Repeat("сервиса ", 40))
	})

	out, err := NewStages(StageDeps{Generator: gen}).ExtractContent(context.Background(), []domain.Source{
		{ID: "source-0", Title: "first", Link: "https://1.example", Snippet: "one"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].IsTextExtracted)
	assert.NotEmpty(t, out[0].TextExtractionError)
	assert.LessOrEqual(t, len(out[0].TextExtractionError), 200)
	assert.True(t, utf8.ValidString(out[0].TextExtractionError), "%q", out[0].TextExtractionError)
}

func TestExtractContentTimeoutIsLocal(t *testing.T) {
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "TITLE: slow") {
			return "", fmt.Errorf("call: %w", context.DeadlineExceeded)
		}
		return "fine", nil
	})

	stages := NewStages(StageDeps{Generator: gen})
	out, err := stages.ExtractContent(context.Background(), []domain.Source{
		{ID: "a", Title: "slow", Snippet: "s"},
		{ID: "b", Title: "fast", Snippet: "f"},
	})
	require.NoError(t, err)
	assert.Equal(t, "timed out", out[0].TextExtractionError)
	assert.True(t, out[1].IsTextExtracted)
}

func TestExtractContentIncludesPageExcerpt(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return "ok", nil
	})

	stages := NewStages(StageDeps{Generator: gen, PageFetcher: stubFetcher{excerpt: "scraped page body"}})
	_, err := stages.ExtractContent(context.Background(), []domain.Source{{ID: "a", Title: "t", Link: "https://a.example", Snippet: "s"}})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "PAGE EXCERPT:\nscraped page body")

	prompts = nil
	stages = NewStages(StageDeps{Generator: gen, PageFetcher: stubFetcher{err: errors.New("404")}})
	_, err = stages.ExtractContent(context.Background(), []domain.Source{{ID: "a", Title: "t", Link: "https://a.example", Snippet: "s"}})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.NotContains(t, prompts[0], "PAGE EXCERPT")
}

func TestExtractContentRejectsMalformedInput(t *testing.T) {
	stages := NewStages(StageDeps{Generator: funcGenerator(func(ports.GenerateRequest) (string, error) { return "x", nil })})

	_, err := stages.ExtractContent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMalformedSources)

	_, err = stages.ExtractContent(context.Background(), []domain.Source{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrMalformedSources)

	_, err = stages.ExtractContent(context.Background(), []domain.Source{{ID: " "}})
	assert.ErrorIs(t, err, ErrMalformedSources)
}

func TestGenerateComponentsParsesSet(t *testing.T) {
	var prompt string
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		prompt = req.Prompt
		assert.Equal(t, ports.FormatJSONObject, req.Format)
		return validComponents, nil
	})

	stages := NewStages(StageDeps{Generator: gen})
	set, err := stages.GenerateComponents(context.Background(), "morning routine tips", []domain.Source{
		{ID: "a", Title: "Used", ExtractedText: "useful detail"},
		{ID: "b", Title: "Skipped", ExtractedText: ""},
	})
	require.NoError(t, err)
	assert.Len(t, set.Hooks, 4)
	assert.Equal(t, "Stack habits", set.GoldenNuggets[0].Title)
	assert.Contains(t, prompt, "useful detail")
	assert.NotContains(t, prompt, "Skipped")
	assert.NotContains(t, prompt, NoResearchPlaceholder)
}

func TestGenerateComponentsUsesPlaceholderWithoutResearch(t *testing.T) {
	var prompt string
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		prompt = req.Prompt
		return validComponents, nil
	})

	stages := NewStages(StageDeps{Generator: gen})
	_, err := stages.GenerateComponents(context.Background(), "idea", []domain.Source{{ID: "a", Snippet: "only snippet"}})
	require.NoError(t, err)
	assert.Contains(t, prompt, NoResearchPlaceholder)
}

func TestGenerateComponentsAcceptsUnevenCardinality(t *testing.T) {
	gen := funcGenerator(func(ports.GenerateRequest) (string, error) {
		return `{"hooks":["h"],"bridges":["b1","b2","b3","b4","b5"],"golden_nuggets":[{"title":"t","bullet_points":["1","2","3","4","5","6"]}],"wtas":["w"]}`, nil
	})

	set, err := NewStages(StageDeps{Generator: gen}).GenerateComponents(context.Background(), "idea", nil)
	require.NoError(t, err)
	assert.Len(t, set.Hooks, 1)
	assert.Len(t, set.Bridges, 5)
	assert.Len(t, set.GoldenNuggets[0].BulletPoints, 6)
}

func TestGenerateComponentsFailures(t *testing.T) {
	cases := map[string]funcGenerator{
		"malformed json": func(ports.GenerateRequest) (string, error) { return `{"hooks": [`, nil },
		"missing category": func(ports.GenerateRequest) (string, error) {
			return `{"hooks":["h"],"bridges":["b"],"golden_nuggets":[{"title":"t","bullet_points":["1","2","3"]}]}`, nil
		},
		"nugget without bullets": func(ports.GenerateRequest) (string, error) {
			return `{"hooks":["h"],"bridges":["b"],"golden_nuggets":[{"title":"t","bullet_points":["1","2"]}],"wtas":["w"]}`, nil
		},
		"nugget as string": func(ports.GenerateRequest) (string, error) {
			return `{"hooks":["h"],"bridges":["b"],"golden_nuggets":["just text"],"wtas":["w"]}`, nil
		},
		"blank hook": func(ports.GenerateRequest) (string, error) {
			return `{"hooks":["   "],"bridges":["b"],"golden_nuggets":[{"title":"t","bullet_points":["1","2","3"]}],"wtas":["w"]}`, nil
		},
		"whitespace bullet": func(ports.GenerateRequest) (string, error) {
			return `{"hooks":["h"],"bridges":["b"],"golden_nuggets":[{"title":"t","bullet_points":["1","2","3"," \t"]}],"wtas":["w"]}`, nil
		},
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			set, err := NewStages(StageDeps{Generator: gen}).GenerateComponents(context.Background(), "idea", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedComponents)
			assert.Nil(t, set)
		})
	}

	upstream := funcGenerator(func(ports.GenerateRequest) (string, error) { return "", errors.New("503") })
	_, err := NewStages(StageDeps{Generator: upstream}).GenerateComponents(context.Background(), "idea", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestGenerateFinalScriptIsDeterministic(t *testing.T) {
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		return "SCRIPT:" + fmt.Sprint(len(req.Prompt)), nil
	})
	stages := NewStages(StageDeps{Generator: gen})
	selected := domain.SelectedContent{
		Hook:         "Stop hitting snooze.",
		Bridge:       "Here's what works instead.",
		GoldenNugget: &domain.GoldenNugget{Title: "The 3-step wake", BulletPoints: []string{"light", "water", "move"}},
		WTA:          "Try it tomorrow.",
	}

	first, err := stages.GenerateFinalScript(context.Background(), "morning routine tips", selected)
	require.NoError(t, err)
	second, err := stages.GenerateFinalScript(context.Background(), "morning routine tips", selected)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateFinalScriptPromptKeepsOrder(t *testing.T) {
	var prompt string
	gen := funcGenerator(func(req ports.GenerateRequest) (string, error) {
		prompt = req.Prompt
		return "  final  ", nil
	})
	selected := domain.SelectedContent{
		Hook:         "HOOK-TEXT",
		Bridge:       "BRIDGE-TEXT",
		GoldenNugget: &domain.GoldenNugget{Title: "NUGGET-TEXT", BulletPoints: []string{"a", "b", "c"}},
		WTA:          "WTA-TEXT",
	}

	script, err := NewStages(StageDeps{Generator: gen}).GenerateFinalScript(context.Background(), "idea", selected)
	require.NoError(t, err)
	assert.Equal(t, "final", script)

	hook := strings.Index(prompt, "HOOK-TEXT")
	bridge := strings.Index(prompt, "BRIDGE-TEXT")
	nugget := strings.Index(prompt, "NUGGET-TEXT")
	wta := strings.Index(prompt, "WTA-TEXT")
	assert.True(t, hook < bridge && bridge < nugget && nugget < wta, "components out of order in prompt")
}

func TestGenerateFinalScriptFailures(t *testing.T) {
	ok := funcGenerator(func(ports.GenerateRequest) (string, error) { return "script", nil })
	_, err := NewStages(StageDeps{Generator: ok}).GenerateFinalScript(context.Background(), "idea", domain.SelectedContent{Hook: "h"})
	assert.ErrorIs(t, err, domain.ErrIncompleteSelection)

	full := domain.SelectedContent{Hook: "h", Bridge: "b", GoldenNugget: &domain.GoldenNugget{Title: "t"}, WTA: "w"}

	blank := funcGenerator(func(ports.GenerateRequest) (string, error) { return "\n", nil })
	_, err = NewStages(StageDeps{Generator: blank}).GenerateFinalScript(context.Background(), "idea", full)
	assert.ErrorIs(t, err, ErrEmptyScript)

	failing := funcGenerator(func(ports.GenerateRequest) (string, error) { return "", errors.New("boom") })
	_, err = NewStages(StageDeps{Generator: failing}).GenerateFinalScript(context.Background(), "idea", full)
	assert.Error(t, err)
}
