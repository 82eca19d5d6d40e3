package events

// Event represents a structured state change emitted by the marketplace.
// Attributes carry the canonical string encoding of the affected record so
// downstream consumers (journal, indexers) never reach back into state.
type Event struct {
	Type       string
	Attributes map[string]string
}

// EventType returns the dotted event name, e.g. "rental.listed".
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, the audit
// journal).
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while
// discarding all events. It is useful when a component wants to optionally
// expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// MultiEmitter fans an event out to every configured emitter in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt *Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
