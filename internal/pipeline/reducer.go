// Package pipeline holds the scriptwriting state machine.
//
// Reduce is the only place PipelineState changes. It is a pure function of the
// current state and a message, and it returns the next state plus the Effect
// (network call) the Controller must run. Results of effects come back in as
// messages tagged with the run id they were started for, so results that
// arrive after a reset or a new submission are discarded.
package pipeline

import (
	"errors"
	"fmt"

	"ScriptWriter/internal/domain"
)

var (
	// ErrRunInProgress is returned when submitting while a stage call is outstanding.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
	// ErrInvalidTransition is returned when a message does not apply to the current stage.
	ErrInvalidTransition = errors.New("invalid pipeline transition")
	// ErrStaleResult is returned for results belonging to an abandoned run.
	ErrStaleResult = errors.New("result belongs to a previous run")
)

// EffectKind names the network call a transition requires.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectGatherSources
	EffectExtractContent
	EffectGenerateComponents
	EffectGenerateFinalScript
)

func (k EffectKind) String() string {
	switch k {
	case EffectGatherSources:
		return "gather_sources"
	case EffectExtractContent:
		return "extract_content"
	case EffectGenerateComponents:
		return "generate_components"
	case EffectGenerateFinalScript:
		return "generate_final_script"
	default:
		return "none"
	}
}

// Effect is a stage call to execute against a snapshot of the state.
type Effect struct {
	Kind  EffectKind
	RunID string
}

// Message is any input to Reduce.
type Message interface {
	isMessage()
}

// Submit starts a run for a video idea.
type Submit struct {
	RunID     string
	VideoIdea string
}

// SourcesGathered carries the Source Gatherer result.
type SourcesGathered struct {
	RunID   string
	Sources []domain.Source
}

// ContentExtracted carries the Content Extractor result.
type ContentExtracted struct {
	RunID   string
	Sources []domain.Source
}

// ComponentsGenerated carries the Component Generator result.
type ComponentsGenerated struct {
	RunID      string
	Components *domain.ComponentSet
}

// SelectComponent chooses an option for one category.
type SelectComponent struct {
	Category domain.Category
	Index    int
}

// ScriptGenerated carries the Script Assembler result.
type ScriptGenerated struct {
	RunID  string
	Script string
}

// StageFailed reports a fatal stage error.
type StageFailed struct {
	RunID string
	Err   error
}

// Retry restarts the run from scratch with the same idea.
type Retry struct {
	RunID string
}

// RetryStage replays only the stage that failed.
type RetryStage struct{}

// Reset discards everything and returns to idle.
type Reset struct{}

func (Submit) isMessage()              {}
func (SourcesGathered) isMessage()     {}
func (ContentExtracted) isMessage()    {}
func (ComponentsGenerated) isMessage() {}
func (SelectComponent) isMessage()     {}
func (ScriptGenerated) isMessage()     {}
func (StageFailed) isMessage()         {}
func (Retry) isMessage()               {}
func (RetryStage) isMessage()          {}
func (Reset) isMessage()               {}

// Reduce applies msg to state. On error the returned state equals the input.
func Reduce(state domain.PipelineState, msg Message) (domain.PipelineState, Effect, error) {
	switch m := msg.(type) {
	case Submit:
		return reduceSubmit(state, m)
	case SourcesGathered:
		if err := expect(state, m.RunID, domain.StageGatheringSources); err != nil {
			return state, Effect{}, err
		}
		if len(m.Sources) == 0 {
			return fail(state, domain.StageGatheringSources, "source gathering returned no sources")
		}
		next := state
		next.Sources = cloneSources(m.Sources)
		return enter(next, domain.StageExtractingContent), Effect{Kind: EffectExtractContent, RunID: state.RunID}, nil
	case ContentExtracted:
		if err := expect(state, m.RunID, domain.StageExtractingContent); err != nil {
			return state, Effect{}, err
		}
		if len(m.Sources) != len(state.Sources) {
			return fail(state, domain.StageExtractingContent,
				fmt.Sprintf("content extraction returned %d sources, expected %d", len(m.Sources), len(state.Sources)))
		}
		for i, src := range m.Sources {
			if src.ID != state.Sources[i].ID {
				return fail(state, domain.StageExtractingContent,
					fmt.Sprintf("content extraction returned source %q at position %d, expected %q", src.ID, i, state.Sources[i].ID))
			}
		}
		next := state
		next.Sources = cloneSources(m.Sources)
		return enter(next, domain.StageGeneratingComponents), Effect{Kind: EffectGenerateComponents, RunID: state.RunID}, nil
	case ComponentsGenerated:
		if err := expect(state, m.RunID, domain.StageGeneratingComponents); err != nil {
			return state, Effect{}, err
		}
		if state.Components != nil {
			return state, Effect{}, fmt.Errorf("%w: components already set", ErrInvalidTransition)
		}
		if m.Components == nil {
			return fail(state, domain.StageGeneratingComponents, "component generation returned nothing")
		}
		if err := m.Components.Validate(); err != nil {
			return fail(state, domain.StageGeneratingComponents, err.Error())
		}
		next := state
		next.Components = m.Components
		next.SelectedComponents = domain.SelectedComponents{}
		return enter(next, domain.StageSelectingComponents), Effect{}, nil
	case SelectComponent:
		return reduceSelect(state, m)
	case ScriptGenerated:
		if err := expect(state, m.RunID, domain.StageGeneratingFinalScript); err != nil {
			return state, Effect{}, err
		}
		if !state.SelectedComponents.Complete() {
			return state, Effect{}, fmt.Errorf("%w: %v", ErrInvalidTransition, domain.ErrIncompleteSelection)
		}
		next := state
		next.FinalScript = m.Script
		return enter(next, domain.StageComplete), Effect{}, nil
	case StageFailed:
		if m.RunID != state.RunID {
			return state, Effect{}, ErrStaleResult
		}
		if !state.Stage.Running() {
			return state, Effect{}, fmt.Errorf("%w: failure reported in %s", ErrInvalidTransition, state.Stage)
		}
		msg := "stage failed"
		if m.Err != nil {
			msg = m.Err.Error()
		}
		return fail(state, state.Stage, msg)
	case Retry:
		if state.Stage != domain.StageError {
			return state, Effect{}, fmt.Errorf("%w: retry from %s", ErrInvalidTransition, state.Stage)
		}
		return reduceSubmit(domain.NewPipelineState(), Submit{RunID: m.RunID, VideoIdea: state.VideoIdea})
	case RetryStage:
		return reduceRetryStage(state)
	case Reset:
		return domain.NewPipelineState(), Effect{}, nil
	default:
		return state, Effect{}, fmt.Errorf("%w: unknown message %T", ErrInvalidTransition, msg)
	}
}

func reduceSubmit(state domain.PipelineState, m Submit) (domain.PipelineState, Effect, error) {
	if state.Stage.Running() || state.Stage == domain.StageSelectingComponents {
		return state, Effect{}, ErrRunInProgress
	}
	idea, err := domain.NormalizeIdea(m.VideoIdea)
	if err != nil {
		return state, Effect{}, err
	}

	next := domain.NewPipelineState()
	next.RunID = m.RunID
	next.VideoIdea = idea
	return enter(next, domain.StageGatheringSources), Effect{Kind: EffectGatherSources, RunID: m.RunID}, nil
}

func reduceSelect(state domain.PipelineState, m SelectComponent) (domain.PipelineState, Effect, error) {
	if state.Stage != domain.StageSelectingComponents {
		return state, Effect{}, fmt.Errorf("%w: select in %s", ErrInvalidTransition, state.Stage)
	}
	n := state.Components.Len(m.Category)
	if n == 0 {
		return state, Effect{}, domain.ErrUnknownCategory
	}
	if m.Index < 0 || m.Index >= n {
		return state, Effect{}, fmt.Errorf("%w: %s %d of %d", domain.ErrSelectionOutOfRange, m.Category, m.Index, n)
	}

	next := state
	next.SelectedComponents = state.SelectedComponents.With(m.Category, m.Index)
	if !next.SelectedComponents.Complete() {
		return next, Effect{}, nil
	}
	return enter(next, domain.StageGeneratingFinalScript), Effect{Kind: EffectGenerateFinalScript, RunID: state.RunID}, nil
}

func reduceRetryStage(state domain.PipelineState) (domain.PipelineState, Effect, error) {
	if state.Stage != domain.StageError {
		return state, Effect{}, fmt.Errorf("%w: retry stage from %s", ErrInvalidTransition, state.Stage)
	}

	var kind EffectKind
	switch state.FailedStage {
	case domain.StageGatheringSources:
		kind = EffectGatherSources
	case domain.StageExtractingContent:
		kind = EffectExtractContent
	case domain.StageGeneratingComponents:
		kind = EffectGenerateComponents
	case domain.StageGeneratingFinalScript:
		kind = EffectGenerateFinalScript
	default:
		return state, Effect{}, fmt.Errorf("%w: no failed stage to replay", ErrInvalidTransition)
	}

	return enter(state, state.FailedStage), Effect{Kind: kind, RunID: state.RunID}, nil
}

// enter moves to a non-error stage and clears error bookkeeping.
func enter(state domain.PipelineState, stage domain.Stage) domain.PipelineState {
	state.Stage = stage
	state.ErrorMessage = ""
	state.FailedStage = ""
	return state
}

func fail(state domain.PipelineState, stage domain.Stage, message string) (domain.PipelineState, Effect, error) {
	state.Stage = domain.StageError
	state.FailedStage = stage
	state.ErrorMessage = message
	return state, Effect{}, nil
}

func expect(state domain.PipelineState, runID string, stage domain.Stage) error {
	if runID != state.RunID {
		return ErrStaleResult
	}
	if state.Stage != stage {
		return fmt.Errorf("%w: result for %s while in %s", ErrInvalidTransition, stage, state.Stage)
	}
	return nil
}

func cloneSources(in []domain.Source) []domain.Source {
	if in == nil {
		return nil
	}
	out := make([]domain.Source, len(in))
	copy(out, in)
	return out
}
