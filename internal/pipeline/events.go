package pipeline

import (
	"sync"
	"time"

	"ScriptWriter/internal/domain"
)

// EventType classifies messages emitted during a run.
type EventType string

const (
	EventTypeStage    EventType = "stage"
	EventTypeSelected EventType = "selected"
	EventTypeError    EventType = "error"
	EventTypeComplete EventType = "complete"
)

// Event is a sequenced state-change notification consumed by UI subscribers.
type Event struct {
	Seq       int64        `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	RunID     string       `json:"runId"`
	Type      EventType    `json:"type"`
	Stage     domain.Stage `json:"stage"`
	Message   string       `json:"message,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 200
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the most recently assigned sequence number.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// eventFor derives the notification for a transition.
func eventFor(before, after domain.PipelineState) (Event, bool) {
	if before.Stage == after.Stage {
		if after.Stage == domain.StageSelectingComponents && before.SelectedComponents != after.SelectedComponents {
			return Event{RunID: after.RunID, Type: EventTypeSelected, Stage: after.Stage}, true
		}
		return Event{}, false
	}

	switch after.Stage {
	case domain.StageError:
		return Event{RunID: after.RunID, Type: EventTypeError, Stage: after.Stage, Message: after.ErrorMessage}, true
	case domain.StageComplete:
		return Event{RunID: after.RunID, Type: EventTypeComplete, Stage: after.Stage}, true
	default:
		return Event{RunID: after.RunID, Type: EventTypeStage, Stage: after.Stage}, true
	}
}
