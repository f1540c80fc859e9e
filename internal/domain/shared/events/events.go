package events

import "time"

// DomainEvent is a fact recorded by an aggregate.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects events until the application layer pulls them.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(ev DomainEvent) {
	r.pending = append(r.pending, ev)
}

// PullEvents returns recorded events and resets the recorder.
func (r *EventRecorder) PullEvents() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
