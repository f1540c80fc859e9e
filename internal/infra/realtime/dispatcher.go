package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Sink receives decoded changes.
type Sink interface {
	Deliver(ctx context.Context, change Change) error
}

// Deduper remembers processed event ids; Seen reports true for repeats.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Dispatcher decodes relayed events and hands them to every sink. It serves
// both as the outbox producer when no broker is configured and as the
// handler behind the Kafka consumer.
type Dispatcher struct {
	Sinks  []Sink
	Dedupe Deduper
	Logger *slog.Logger
}

// Publish matches the outbox relay's producer contract.
func (d *Dispatcher) Publish(ctx context.Context, _ string, _ string, payload []byte, headers map[string]string) error {
	return d.Dispatch(ctx, payload, headers)
}

func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, headers map[string]string) error {
	change, err := Decode(payload, headers)
	if err != nil {
		// poison message: retrying cannot fix it
		d.logger().Warn("dropping malformed change", "error", err)
		return nil
	}
	if d.Dedupe != nil {
		seen, err := d.Dedupe.Seen(ctx, change.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	var errs []error
	for _, sink := range d.Sinks {
		if err := sink.Deliver(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		d.logger().Warn("change delivery failed", "change_id", change.ID, "type", change.Type, "error", errors.Join(errs...))
	}
	return nil
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// MemoryDeduper is a bounded in-process Deduper.
type MemoryDeduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	Limit int
}

func NewMemoryDeduper(limit int) *MemoryDeduper {
	if limit <= 0 {
		limit = 10000
	}
	return &MemoryDeduper{seen: make(map[string]struct{}), Limit: limit}
}

func (m *MemoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return true, nil
	}
	m.seen[eventID] = struct{}{}
	m.order = append(m.order, eventID)
	if len(m.order) > m.Limit {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.seen, oldest)
	}
	return false, nil
}
