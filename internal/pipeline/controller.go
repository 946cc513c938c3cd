package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
)

// ControllerDeps wires the controller to its collaborators.
type ControllerDeps struct {
	Stages    ports.Stages
	Archive   ports.ScriptRepository
	Publisher ports.Publisher
	Events    *EventBus
	Logger    *slog.Logger
	// NewRunID overrides run id generation in tests.
	NewRunID func() string
}

// Controller owns a PipelineState and drives its stage calls asynchronously.
// Stage calls run on their own goroutine; the state is only touched under mu
// and only through Reduce.
type Controller struct {
	mu      sync.Mutex
	state   domain.PipelineState
	changed chan struct{}
	runCtx  context.Context
	cancel  context.CancelFunc

	stages    ports.Stages
	archive   ports.ScriptRepository
	publisher ports.Publisher
	events    *EventBus
	logger    *slog.Logger
	newRunID  func() string
	inflight  sync.WaitGroup
}

// NewController creates a controller in idle state.
func NewController(deps ControllerDeps) *Controller {
	events := deps.Events
	if events == nil {
		events = NewEventBus(0)
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Controller{
		state:     domain.NewPipelineState(),
		changed:   make(chan struct{}),
		stages:    deps.Stages,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		events:    events,
		logger:    deps.Logger,
		newRunID:  newRunID,
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() domain.PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

// Changed returns a channel that is closed on the next state change.
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Events exposes the state-change feed.
func (c *Controller) Events() *EventBus {
	return c.events
}

// Submit starts a new run. It fails with ErrRunInProgress while another run is
// active and with domain.ErrEmptyIdea for blank input.
func (c *Controller) Submit(videoIdea string) error {
	return c.Dispatch(Submit{RunID: c.newRunID(), VideoIdea: videoIdea})
}

// Select chooses an option; the fourth distinct category triggers assembly.
func (c *Controller) Select(category domain.Category, index int) error {
	return c.Dispatch(SelectComponent{Category: category, Index: index})
}

// Retry restarts a failed run from scratch with the same idea.
func (c *Controller) Retry() error {
	return c.Dispatch(Retry{RunID: c.newRunID()})
}

// RetryStage replays only the stage that failed.
func (c *Controller) RetryStage() error {
	return c.Dispatch(RetryStage{})
}

// Reset abandons any outstanding call and returns to idle.
func (c *Controller) Reset() {
	_ = c.Dispatch(Reset{})
}

// Dispatch is the single mutation entry point.
func (c *Controller) Dispatch(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(msg)
}

func (c *Controller) dispatchLocked(msg Message) error {
	before := c.state
	next, effect, err := Reduce(before, msg)
	if err != nil {
		return err
	}

	if next.RunID != before.RunID || !next.Stage.Running() {
		c.abandonRun()
	}
	c.state = next

	if event, ok := eventFor(before, next); ok {
		c.events.Publish(event)
		c.debug("pipeline transition", "run_id", next.RunID, "from", before.Stage, "to", next.Stage)
		if next.Stage == domain.StageError {
			c.warn("pipeline stage failed", "run_id", next.RunID, "stage", next.FailedStage, "error", next.ErrorMessage)
		}
	}
	close(c.changed)
	c.changed = make(chan struct{})

	if effect.Kind != EffectNone {
		c.start(effect, snapshot(next))
	}
	if next.Stage == domain.StageComplete && before.Stage != domain.StageComplete {
		c.inflight.Add(1)
		go c.archiveRun(snapshot(next))
	}
	return nil
}

func (c *Controller) start(effect Effect, state domain.PipelineState) {
	if c.runCtx == nil {
		c.runCtx, c.cancel = context.WithCancel(context.Background())
	}
	c.inflight.Add(1)
	go c.run(c.runCtx, effect, state)
}

func (c *Controller) run(ctx context.Context, effect Effect, state domain.PipelineState) {
	defer c.inflight.Done()

	result := c.execute(ctx, effect, state)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dispatchLocked(result); err != nil && !errors.Is(err, ErrStaleResult) {
		c.warn("discarding stage result", "effect", effect.Kind.String(), "error", err)
	}
}

func (c *Controller) execute(ctx context.Context, effect Effect, state domain.PipelineState) (msg Message) {
	defer func() {
		if r := recover(); r != nil {
			msg = StageFailed{RunID: effect.RunID, Err: fmt.Errorf("%s panicked: %v", effect.Kind, r)}
		}
	}()

	if c.stages == nil {
		return StageFailed{RunID: effect.RunID, Err: errors.New("pipeline stages are not configured")}
	}

	start := time.Now()
	defer func() {
		c.debug("stage call finished", "effect", effect.Kind.String(), "run_id", effect.RunID, "elapsed", time.Since(start))
	}()

	switch effect.Kind {
	case EffectGatherSources:
		sources, err := c.stages.GatherSources(ctx, state.VideoIdea)
		if err != nil {
			return StageFailed{RunID: effect.RunID, Err: fmt.Errorf("gather sources: %w", err)}
		}
		return SourcesGathered{RunID: effect.RunID, Sources: sources}
	case EffectExtractContent:
		sources, err := c.stages.ExtractContent(ctx, state.Sources)
		if err != nil {
			return StageFailed{RunID: effect.RunID, Err: fmt.Errorf("extract content: %w", err)}
		}
		return ContentExtracted{RunID: effect.RunID, Sources: sources}
	case EffectGenerateComponents:
		set, err := c.stages.GenerateComponents(ctx, state.VideoIdea, state.Sources)
		if err != nil {
			return StageFailed{RunID: effect.RunID, Err: fmt.Errorf("generate components: %w", err)}
		}
		return ComponentsGenerated{RunID: effect.RunID, Components: set}
	case EffectGenerateFinalScript:
		selected, err := state.SelectedComponents.Resolve(state.Components)
		if err != nil {
			return StageFailed{RunID: effect.RunID, Err: err}
		}
		script, err := c.stages.GenerateFinalScript(ctx, state.VideoIdea, selected)
		if err != nil {
			return StageFailed{RunID: effect.RunID, Err: fmt.Errorf("generate final script: %w", err)}
		}
		return ScriptGenerated{RunID: effect.RunID, Script: script}
	default:
		return StageFailed{RunID: effect.RunID, Err: fmt.Errorf("unknown effect %d", effect.Kind)}
	}
}

func (c *Controller) archiveRun(state domain.PipelineState) {
	defer c.inflight.Done()
	if c.archive == nil && c.publisher == nil {
		return
	}

	record, err := recordFor(state)
	if err != nil {
		c.warn("cannot archive run", "run_id", state.RunID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if c.archive != nil {
		if err := c.archive.Save(ctx, record); err != nil {
			c.warn("archive script failed", "run_id", state.RunID, "error", err)
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishScript(ctx, record); err != nil {
			c.warn("publish script failed", "run_id", state.RunID, "error", err)
		}
	}
}

func recordFor(state domain.PipelineState) (domain.ScriptRecord, error) {
	selected, err := state.SelectedComponents.Resolve(state.Components)
	if err != nil {
		return domain.ScriptRecord{}, err
	}
	return domain.ScriptRecord{
		RunID:       state.RunID,
		VideoIdea:   state.VideoIdea,
		Script:      state.FinalScript,
		Hook:        selected.Hook,
		Bridge:      selected.Bridge,
		NuggetTitle: selected.GoldenNugget.Title,
		WTA:         selected.WTA,
		SourceCount: len(state.Sources),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Wait blocks until no stage call is outstanding (idle, selecting, complete
// or error) and returns that state.
func (c *Controller) Wait(ctx context.Context) (domain.PipelineState, error) {
	for {
		c.mu.Lock()
		if !c.state.Stage.Running() {
			state := snapshot(c.state)
			c.mu.Unlock()
			return state, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// Close cancels outstanding calls and waits for background work to drain.
func (c *Controller) Close() {
	c.mu.Lock()
	c.abandonRun()
	c.mu.Unlock()
	c.inflight.Wait()
}

// abandonRun cancels calls belonging to the current run id.
func (c *Controller) abandonRun() {
	if c.cancel != nil {
		c.cancel()
	}
	c.runCtx, c.cancel = nil, nil
}

func snapshot(state domain.PipelineState) domain.PipelineState {
	state.Sources = cloneSources(state.Sources)
	return state
}

func (c *Controller) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Controller) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
