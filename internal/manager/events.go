package manager

// Event names published by the manager.
const (
	EventAvailabilityChanged = "availability_changed"
	EventPollStart           = "poll_start"
	EventPollStop            = "poll_stop"
	EventSessionCreated      = "session_created"
	EventSessionReplaced     = "session_replaced"
	EventSessionDestroyed    = "session_destroyed"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + domain and optional fields via key/values.
type Event struct {
	Name   string
	Domain string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
