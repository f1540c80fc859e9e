package outbox

import (
	"context"
	"time"

	appoutbox "github.com/CypherNinjaa/social-media-sub000/internal/app/outbox"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusDead       = "dead"
)

// ClaimLease is how long a claimed event stays invisible to other workers.
const ClaimLease = 30 * time.Second

// EventDocument is a stored outbox event awaiting relay.
type EventDocument struct {
	ID            string            `bson:"_id"`
	Name          string            `bson:"name"`
	Aggregate     string            `bson:"aggregate"`
	Payload       []byte            `bson:"payload"`
	Headers       map[string]string `bson:"headers"`
	OccurredAt    time.Time         `bson:"occurred_at"`
	Status        string            `bson:"status"`
	Attempts      int               `bson:"attempts"`
	NextAttemptAt time.Time         `bson:"next_attempt_at"`
	ClaimedBy     string            `bson:"claimed_by,omitempty"`
	LastError     string            `bson:"last_error,omitempty"`
}

// NewDocument converts an application record into a pending document.
func NewDocument(rec appoutbox.EventRecord) EventDocument {
	headers := make(map[string]string, len(rec.Headers))
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return EventDocument{
		ID:            rec.ID,
		Name:          rec.Name,
		Aggregate:     rec.Aggregate,
		Payload:       append([]byte(nil), rec.Payload...),
		Headers:       headers,
		OccurredAt:    rec.OccurredAt.UTC(),
		Status:        StatusPending,
		NextAttemptAt: rec.OccurredAt.UTC(),
	}
}

// Record converts the document back into an application record.
func (d EventDocument) Record() appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         d.ID,
		Name:       d.Name,
		Payload:    d.Payload,
		OccurredAt: d.OccurredAt,
		Aggregate:  d.Aggregate,
		Headers:    d.Headers,
	}
}

// Store is the durable queue between command handlers and the relay worker.
type Store interface {
	appoutbox.Sink
	// Claim leases the oldest due event to workerID. It returns nil when idle.
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed schedules a retry at retryAt; a zero retryAt parks the event as dead.
	MarkFailed(ctx context.Context, id string, retryAt time.Time, reason string) error
}
