package events

import (
	"sync"

	"marketd/core/types"
)

// Event represents a structured state change emitted by the marketplace.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
// Emission is fire-and-forget: no marketplace transition ever depends on an
// emitter outcome.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder buffers emitted events in memory. The RPC event feed and tests use
// it to observe the telemetry stream without an external sink.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// NewRecorder constructs an empty in-memory event recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, payload.Copy())
}

// Events returns a snapshot of everything recorded so far, oldest first.
func (r *Recorder) Events() []*types.Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Copy())
	}
	return out
}

// Multi fans a single emission out to every configured emitter in order.
type Multi struct {
	emitters []Emitter
}

// NewMulti builds a fan-out emitter. Nil entries are skipped.
func NewMulti(emitters ...Emitter) *Multi {
	filtered := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &Multi{emitters: filtered}
}

// Emit implements the Emitter interface.
func (m *Multi) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, e := range m.emitters {
		e.Emit(evt)
	}
}
