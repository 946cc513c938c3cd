package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScriptWriter/internal/domain"
)

type fakeStages struct {
	gather     func(ctx context.Context, idea string) ([]domain.Source, error)
	extract    func(ctx context.Context, sources []domain.Source) ([]domain.Source, error)
	components func(ctx context.Context, idea string, sources []domain.Source) (*domain.ComponentSet, error)
	assemble   func(ctx context.Context, idea string, selected domain.SelectedContent) (string, error)
}

func (f *fakeStages) GatherSources(ctx context.Context, idea string) ([]domain.Source, error) {
	if f.gather == nil {
		return sampleSources(), nil
	}
	return f.gather(ctx, idea)
}

func (f *fakeStages) ExtractContent(ctx context.Context, sources []domain.Source) ([]domain.Source, error) {
	if f.extract == nil {
		return sources, nil
	}
	return f.extract(ctx, sources)
}

func (f *fakeStages) GenerateComponents(ctx context.Context, idea string, sources []domain.Source) (*domain.ComponentSet, error) {
	if f.components == nil {
		return sampleComponents(), nil
	}
	return f.components(ctx, idea, sources)
}

func (f *fakeStages) GenerateFinalScript(ctx context.Context, idea string, selected domain.SelectedContent) (string, error) {
	if f.assemble == nil {
		return fmt.Sprintf("%s | %s | %s | %s", selected.Hook, selected.Bridge, selected.GoldenNugget.Title, selected.WTA), nil
	}
	return f.assemble(ctx, idea, selected)
}

type memoryArchive struct {
	mu      sync.Mutex
	records []domain.ScriptRecord
	saved   chan struct{}
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{saved: make(chan struct{}, 4)}
}

func (m *memoryArchive) Save(_ context.Context, record domain.ScriptRecord) error {
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	m.saved <- struct{}{}
	return nil
}

func (m *memoryArchive) List(_ context.Context, limit int) ([]domain.ScriptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return append([]domain.ScriptRecord(nil), m.records[:limit]...), nil
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("run-%d", n.Add(1))
	}
}

func waitIdle(t *testing.T, c *Controller) domain.PipelineState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := c.Wait(ctx)
	require.NoError(t, err)
	return state
}

func TestControllerRunsToCompletion(t *testing.T) {
	archive := newMemoryArchive()
	c := NewController(ControllerDeps{Stages: &fakeStages{}, Archive: archive, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("morning routine tips"))
	state := waitIdle(t, c)
	require.Equal(t, domain.StageSelectingComponents, state.Stage)
	require.NotNil(t, state.Components)

	require.NoError(t, c.Select(domain.CategoryHook, 1))
	require.NoError(t, c.Select(domain.CategoryBridge, 2))
	require.NoError(t, c.Select(domain.CategoryGoldenNugget, 0))
	assert.Equal(t, domain.StageSelectingComponents, c.State().Stage)
	require.NoError(t, c.Select(domain.CategoryWTA, 1))

	state = waitIdle(t, c)
	require.Equal(t, domain.StageComplete, state.Stage)
	assert.Equal(t, "h1 | b2 | n0 | w1", state.FinalScript)

	select {
	case <-archive.saved:
	case <-time.After(5 * time.Second):
		t.Fatal("completed run was not archived")
	}
	records, err := archive.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "n0", records[0].NuggetTitle)
	assert.Equal(t, 2, records[0].SourceCount)

	events := c.Events().Since(0)
	require.NotEmpty(t, events)
	assert.Equal(t, EventTypeComplete, events[len(events)-1].Type)
}

func TestControllerPartialExtractionStillAdvances(t *testing.T) {
	stages := &fakeStages{
		extract: func(_ context.Context, sources []domain.Source) ([]domain.Source, error) {
			out := append([]domain.Source(nil), sources...)
			out[0].ExtractedText = "wake early"
			out[0].IsTextExtracted = true
			out[1].ExtractedText = out[1].Snippet + " (extraction failed)"
			out[1].TextExtractionError = "timed out"
			return out, nil
		},
	}
	var seen []domain.Source
	stages.components = func(_ context.Context, _ string, sources []domain.Source) (*domain.ComponentSet, error) {
		seen = sources
		return sampleComponents(), nil
	}

	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("morning routine tips"))
	state := waitIdle(t, c)
	require.Equal(t, domain.StageSelectingComponents, state.Stage)
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsTextExtracted)
	assert.False(t, seen[1].IsTextExtracted)
	assert.Equal(t, "timed out", state.Sources[1].TextExtractionError)
}

func TestControllerComponentFailureEntersError(t *testing.T) {
	stages := &fakeStages{
		components: func(context.Context, string, []domain.Source) (*domain.ComponentSet, error) {
			return nil, errors.New("malformed component payload")
		},
	}
	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("idea"))
	state := waitIdle(t, c)
	assert.Equal(t, domain.StageError, state.Stage)
	assert.Equal(t, domain.StageGeneratingComponents, state.FailedStage)
	assert.Contains(t, state.ErrorMessage, "malformed component payload")
	assert.Nil(t, state.Components)
}

func TestControllerRetryStage(t *testing.T) {
	var calls atomic.Int32
	stages := &fakeStages{
		components: func(context.Context, string, []domain.Source) (*domain.ComponentSet, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("upstream 503")
			}
			return sampleComponents(), nil
		},
	}
	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("idea"))
	require.Equal(t, domain.StageError, waitIdle(t, c).Stage)

	require.NoError(t, c.RetryStage())
	state := waitIdle(t, c)
	assert.Equal(t, domain.StageSelectingComponents, state.Stage)
	assert.Equal(t, "run-1", state.RunID)
	assert.Empty(t, state.ErrorMessage)
}

func TestControllerRejectsConcurrentSubmit(t *testing.T) {
	release := make(chan struct{})
	stages := &fakeStages{
		gather: func(ctx context.Context, _ string) ([]domain.Source, error) {
			select {
			case <-release:
				return sampleSources(), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("first"))
	assert.ErrorIs(t, c.Submit("second"), ErrRunInProgress)
	assert.Equal(t, "first", c.State().VideoIdea)

	close(release)
	assert.Equal(t, domain.StageSelectingComponents, waitIdle(t, c).Stage)
}

func TestControllerResetDiscardsOutstandingCall(t *testing.T) {
	cancelled := make(chan struct{})
	stages := &fakeStages{
		gather: func(ctx context.Context, idea string) ([]domain.Source, error) {
			if idea == "second" {
				return sampleSources(), nil
			}
			<-ctx.Done()
			close(cancelled)
			return sampleSources(), nil
		},
	}
	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("first"))
	c.Reset()
	assert.Equal(t, domain.StageIdle, c.State().Stage)

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("reset did not cancel the outstanding call")
	}

	require.NoError(t, c.Submit("second"))
	state := waitIdle(t, c)
	assert.Equal(t, domain.StageSelectingComponents, state.Stage)
	assert.Equal(t, "run-2", state.RunID)
	assert.Equal(t, "second", state.VideoIdea)
}

func TestControllerRejectsBlankIdea(t *testing.T) {
	c := NewController(ControllerDeps{Stages: &fakeStages{}})
	defer c.Close()

	assert.ErrorIs(t, c.Submit("  "), domain.ErrEmptyIdea)
	assert.Equal(t, domain.StageIdle, c.State().Stage)
}

func TestControllerRecoversFromPanickingStage(t *testing.T) {
	stages := &fakeStages{
		gather: func(context.Context, string) ([]domain.Source, error) {
			panic("bad stage")
		},
	}
	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("idea"))
	state := waitIdle(t, c)
	assert.Equal(t, domain.StageError, state.Stage)
	assert.Contains(t, state.ErrorMessage, "panicked")
}

func TestControllerMalformedComponentsEndRun(t *testing.T) {
	stages := &fakeStages{
		components: func(context.Context, string, []domain.Source) (*domain.ComponentSet, error) {
			set := sampleComponents()
			set.GoldenNuggets[0].BulletPoints = []string{"x", "y"}
			return set, nil
		},
	}
	c := NewController(ControllerDeps{Stages: stages, NewRunID: sequentialIDs()})
	defer c.Close()

	require.NoError(t, c.Submit("idea"))
	state := waitIdle(t, c)
	assert.Equal(t, domain.StageError, state.Stage)
	assert.Equal(t, domain.StageGeneratingComponents, state.FailedStage)
	assert.Nil(t, state.Components)
	assert.ErrorIs(t, c.Select(domain.CategoryHook, 0), ErrInvalidTransition)

	stages.components = nil
	require.NoError(t, c.Submit("idea"))
	assert.Equal(t, domain.StageSelectingComponents, waitIdle(t, c).Stage)
}
