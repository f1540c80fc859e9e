package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appoutbox "github.com/CypherNinjaa/social-media-sub000/internal/app/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/outbox"
)

// EventStore is an in-process outbox queue for the relay worker.
type EventStore struct {
	mu   sync.Mutex
	docs map[string]*outbox.EventDocument
	now  func() time.Time
}

func NewEventStore() *EventStore {
	return &EventStore{docs: make(map[string]*outbox.EventDocument), now: time.Now}
}

func (s *EventStore) Enqueue(ctx context.Context, records []appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		doc := outbox.NewDocument(rec)
		if _, exists := s.docs[doc.ID]; exists {
			continue
		}
		s.docs[doc.ID] = &doc
	}
	return nil
}

func (s *EventStore) Claim(ctx context.Context, workerID string) (*outbox.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	due := make([]*outbox.EventDocument, 0)
	for _, doc := range s.docs {
		switch doc.Status {
		case outbox.StatusPending:
			if !doc.NextAttemptAt.After(now) {
				due = append(due, doc)
			}
		case outbox.StatusProcessing:
			// lease expired: the previous worker died mid-publish
			if !doc.NextAttemptAt.After(now) {
				due = append(due, doc)
			}
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].OccurredAt.Equal(due[j].OccurredAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].OccurredAt.Before(due[j].OccurredAt)
	})
	doc := due[0]
	doc.Status = outbox.StatusProcessing
	doc.ClaimedBy = workerID
	doc.NextAttemptAt = now.Add(outbox.ClaimLease)
	out := *doc
	return &out, nil
}

func (s *EventStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[id]; ok {
		doc.Status = outbox.StatusSent
		doc.ClaimedBy = ""
	}
	return nil
}

func (s *EventStore) MarkFailed(ctx context.Context, id string, retryAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil
	}
	doc.Attempts++
	doc.LastError = reason
	doc.ClaimedBy = ""
	if retryAt.IsZero() {
		doc.Status = outbox.StatusDead
		return nil
	}
	doc.Status = outbox.StatusPending
	doc.NextAttemptAt = retryAt.UTC()
	return nil
}

// Pending counts events not yet relayed.
func (s *EventStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, doc := range s.docs {
		if doc.Status == outbox.StatusPending || doc.Status == outbox.StatusProcessing {
			n++
		}
	}
	return n
}

var _ outbox.Store = (*EventStore)(nil)
