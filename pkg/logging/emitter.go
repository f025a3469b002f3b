package logging

import (
	"encoding/json"
	"time"

	"github.com/jingkaihe/vswitch/internal/errx"
)

// EmitterConfig holds the static metadata configured at switch startup.
// All fields are stamped onto every event automatically.
type EmitterConfig struct {
	RunID       string // Caller-supplied; stamped as given, even if empty
	AgentSystem string // Set by consumer at startup (e.g., "openclaw", "aider")
}

// Emitter provides convenience methods for emitting typed events.
// It holds static metadata and dispatches to one or more sinks.
//
// A nil *Emitter is safe to hold; callers guard emission with:
//
//	if emitter != nil {
//	    _ = emitter.Emit(...)
//	}
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
}

// NewEmitter creates an emitter with the given configuration and sinks.
// The emitter applies no default to RunID; the caller fills it in
// before passing the config.
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	return &Emitter{
		config: cfg,
		sinks:  sinks,
	}
}

// Emit constructs an event with the emitter's static metadata and writes
// it to all registered sinks.
//
// Parameters:
//   - eventType: one of the Event* constants (e.g., EventGuestLifecycle)
//   - summary: human-readable one-line summary
//   - component: the emitting subsystem name (e.g., "coordinator", "worker", "control"); empty if not applicable
//   - tags: optional tags for filtering (nil is fine)
//   - data: the typed data struct (e.g., *GuestLifecycleData); nil for no payload
//
// Returns the first error encountered. Callers should discard errors
// with _ = (best-effort semantics).
func (e *Emitter) Emit(eventType, summary, component string, tags []string, data interface{}) error {
	var rawData json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errx.Wrap(ErrMarshalData, err)
		}
		rawData = b
	}

	event := &Event{
		Timestamp:   time.Now().UTC(),
		RunID:       e.config.RunID,
		AgentSystem: e.config.AgentSystem,
		EventType:   eventType,
		Summary:     summary,
		Component:   component,
		Tags:        tags,
		Data:        rawData,
	}

	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks. Returns the first error encountered.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
