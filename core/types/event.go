package types

// Event represents a typed event emitted during marketplace state transitions.
// Attributes are stringly typed so downstream analytics consumers can decode
// payloads without sharing Go types with the daemon.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Copy returns a detached copy of the event so subscribers can hold on to it
// without aliasing the emitter's attribute map.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}
