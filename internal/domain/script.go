package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage enumerates pipeline milestones.
type Stage string

const (
	StageIdle                  Stage = "idle"
	StageGatheringSources      Stage = "gatheringSources"
	StageExtractingContent     Stage = "extractingContent"
	StageGeneratingComponents  Stage = "generatingComponents"
	StageSelectingComponents   Stage = "selectingComponents"
	StageGeneratingFinalScript Stage = "generatingFinalScript"
	StageComplete              Stage = "complete"
	StageError                 Stage = "error"
)

// Running reports whether a stage has a network call outstanding.
func (s Stage) Running() bool {
	switch s {
	case StageGatheringSources, StageExtractingContent, StageGeneratingComponents, StageGeneratingFinalScript:
		return true
	default:
		return false
	}
}

// Source is a research reference used to ground generated script content.
type Source struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Link                string `json:"link"`
	Snippet             string `json:"snippet"`
	ExtractedText       string `json:"extractedText,omitempty"`
	IsTextExtracted     bool   `json:"isTextExtracted"`
	TextExtractionError string `json:"textExtractionError,omitempty"`
}

// GoldenNugget is a structured, multi-bullet insight.
type GoldenNugget struct {
	Title        string   `json:"title"`
	BulletPoints []string `json:"bullet_points"`
}

// MinNuggetBullets is the smallest bullet list a golden nugget may carry.
const MinNuggetBullets = 3

// ComponentSet holds the generated building blocks for a single run.
type ComponentSet struct {
	Hooks         []string       `json:"hooks"`
	Bridges       []string       `json:"bridges"`
	GoldenNuggets []GoldenNugget `json:"golden_nuggets"`
	WTAs          []string       `json:"wtas"`
}

// Category names one component slot.
type Category string

const (
	CategoryHook         Category = "hook"
	CategoryBridge       Category = "bridge"
	CategoryGoldenNugget Category = "goldenNugget"
	CategoryWTA          Category = "wta"
)

// Categories lists slots in script order.
var Categories = []Category{CategoryHook, CategoryBridge, CategoryGoldenNugget, CategoryWTA}

// ParseCategory accepts the canonical names plus a few loose spellings.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "hook", "hooks":
		return CategoryHook, nil
	case "bridge", "bridges":
		return CategoryBridge, nil
	case "goldennugget", "golden_nugget", "nugget", "golden_nuggets":
		return CategoryGoldenNugget, nil
	case "wta", "wtas", "cta":
		return CategoryWTA, nil
	default:
		return "", ErrUnknownCategory
	}
}

// Len returns the number of options generated for a category.
func (c *ComponentSet) Len(cat Category) int {
	if c == nil {
		return 0
	}
	switch cat {
	case CategoryHook:
		return len(c.Hooks)
	case CategoryBridge:
		return len(c.Bridges)
	case CategoryGoldenNugget:
		return len(c.GoldenNuggets)
	case CategoryWTA:
		return len(c.WTAs)
	default:
		return 0
	}
}

// Validate rejects sets that cannot be selected from: an empty category, a
// blank option, or a golden nugget without a title or enough bullet points.
func (c *ComponentSet) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: no components", ErrMalformedComponents)
	}
	for _, cat := range Categories {
		if c.Len(cat) == 0 {
			return fmt.Errorf("%w: no %s options", ErrMalformedComponents, cat)
		}
	}
	for _, group := range []struct {
		cat    Category
		values []string
	}{{CategoryHook, c.Hooks}, {CategoryBridge, c.Bridges}, {CategoryWTA, c.WTAs}} {
		for i, v := range group.values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: %s %d is blank", ErrMalformedComponents, group.cat, i)
			}
		}
	}
	for i, nugget := range c.GoldenNuggets {
		if strings.TrimSpace(nugget.Title) == "" {
			return fmt.Errorf("%w: golden nugget %d has no title", ErrMalformedComponents, i)
		}
		bullets := 0
		for _, b := range nugget.BulletPoints {
			if strings.TrimSpace(b) != "" {
				bullets++
			}
		}
		if bullets != len(nugget.BulletPoints) {
			return fmt.Errorf("%w: golden nugget %d has a blank bullet point", ErrMalformedComponents, i)
		}
		if bullets < MinNuggetBullets {
			return fmt.Errorf("%w: golden nugget %d has %d bullet points", ErrMalformedComponents, i, bullets)
		}
	}
	return nil
}

// SelectedComponents references one option per category by index.
type SelectedComponents struct {
	Hook         *int `json:"hook,omitempty"`
	Bridge       *int `json:"bridge,omitempty"`
	GoldenNugget *int `json:"goldenNugget,omitempty"`
	WTA          *int `json:"wta,omitempty"`
}

// With returns a copy with the given slot pointing at index.
func (s SelectedComponents) With(cat Category, index int) SelectedComponents {
	idx := index
	switch cat {
	case CategoryHook:
		s.Hook = &idx
	case CategoryBridge:
		s.Bridge = &idx
	case CategoryGoldenNugget:
		s.GoldenNugget = &idx
	case CategoryWTA:
		s.WTA = &idx
	}
	return s
}

// Complete reports whether all four slots are filled.
func (s SelectedComponents) Complete() bool {
	return s.Hook != nil && s.Bridge != nil && s.GoldenNugget != nil && s.WTA != nil
}

// Resolve dereferences the selection against the set it points into.
func (s SelectedComponents) Resolve(set *ComponentSet) (SelectedContent, error) {
	if set == nil || !s.Complete() {
		return SelectedContent{}, ErrIncompleteSelection
	}
	if !inRange(*s.Hook, len(set.Hooks)) || !inRange(*s.Bridge, len(set.Bridges)) ||
		!inRange(*s.GoldenNugget, len(set.GoldenNuggets)) || !inRange(*s.WTA, len(set.WTAs)) {
		return SelectedContent{}, ErrSelectionOutOfRange
	}

	nugget := set.GoldenNuggets[*s.GoldenNugget]
	return SelectedContent{
		Hook:         set.Hooks[*s.Hook],
		Bridge:       set.Bridges[*s.Bridge],
		GoldenNugget: &nugget,
		WTA:          set.WTAs[*s.WTA],
	}, nil
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

// SelectedContent is the resolved selection sent to the script assembler.
type SelectedContent struct {
	Hook         string        `json:"hook"`
	Bridge       string        `json:"bridge"`
	GoldenNugget *GoldenNugget `json:"goldenNugget"`
	WTA          string        `json:"wta"`
}

// Validate checks that every slot carries content.
func (s SelectedContent) Validate() error {
	if strings.TrimSpace(s.Hook) == "" || strings.TrimSpace(s.Bridge) == "" ||
		strings.TrimSpace(s.WTA) == "" || s.GoldenNugget == nil || strings.TrimSpace(s.GoldenNugget.Title) == "" {
		return ErrIncompleteSelection
	}
	return nil
}

// PipelineState is the aggregate owned by the pipeline controller.
type PipelineState struct {
	RunID              string             `json:"runId,omitempty"`
	Stage              Stage              `json:"stage"`
	VideoIdea          string             `json:"videoIdea"`
	Sources            []Source           `json:"sources"`
	Components         *ComponentSet      `json:"components"`
	SelectedComponents SelectedComponents `json:"selectedComponents"`
	FinalScript        string             `json:"finalScript,omitempty"`
	ErrorMessage       string             `json:"errorMessage,omitempty"`
	FailedStage        Stage              `json:"failedStage,omitempty"`
}

// NewPipelineState returns the initial idle state.
func NewPipelineState() PipelineState {
	return PipelineState{Stage: StageIdle}
}

// ScriptRecord is an archived, completed run.
type ScriptRecord struct {
	RunID       string    `json:"runId"`
	VideoIdea   string    `json:"videoIdea"`
	Script      string    `json:"script"`
	Hook        string    `json:"hook"`
	Bridge      string    `json:"bridge"`
	NuggetTitle string    `json:"nuggetTitle"`
	WTA         string    `json:"wta"`
	SourceCount int       `json:"sourceCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

var (
	ErrEmptyIdea           = errors.New("video idea must not be empty")
	ErrUnknownCategory     = errors.New("unknown component category")
	ErrIncompleteSelection = errors.New("all four components must be selected")
	ErrSelectionOutOfRange = errors.New("selected component index out of range")
	ErrMalformedComponents = errors.New("generated components are malformed")
)

// NormalizeIdea trims the idea and rejects empty input.
func NormalizeIdea(idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", ErrEmptyIdea
	}
	return idea, nil
}
