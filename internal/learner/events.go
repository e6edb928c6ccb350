package learner

// Event names published by a Learner.
const (
	EventTaskBegun     = "task_begun"
	EventTaskEnded     = "task_ended"
	EventPrototypesSet = "prototypes_set"
)

// Event represents a learner lifecycle event.
// Minimal and stable: a unique id, name and task index plus optional fields.
type Event struct {
	ID     string
	Name   string
	Task   int
	Fields map[string]any
}

// EventPublisher receives events from the learner. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
