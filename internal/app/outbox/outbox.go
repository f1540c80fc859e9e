package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/shared/events"
)

// AudienceHeader lists the user ids (comma separated) whose views an event refreshes.
const AudienceHeader = "audience"

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Audience decodes the audience header.
func (r EventRecord) Audience() []string {
	raw := strings.TrimSpace(r.Headers[AudienceHeader])
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

// Sink durably accepts flushed records (the relay's pending queue).
type Sink interface {
	Enqueue(ctx context.Context, records []EventRecord) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// RecordDomainEvents encodes events and adds them to the outbox addressed to audience.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent, audience []string) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if rec.Headers == nil {
			rec.Headers = map[string]string{}
		}
		if len(audience) > 0 {
			rec.Headers[AudienceHeader] = strings.Join(audience, ",")
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

var ErrSinkMissing = errors.New("outbox: sink not configured")

// Buffered collects records per command (see Begin) and hands them to the
// sink on Flush. Records added outside a command scope go straight to the sink.
type Buffered struct {
	Sink Sink
}

type bufferKey struct{}

type buffer struct {
	mu      sync.Mutex
	records []EventRecord
}

// Begin opens a per-command buffer on ctx.
func Begin(ctx context.Context) context.Context {
	return context.WithValue(ctx, bufferKey{}, &buffer{})
}

func bufferFrom(ctx context.Context) *buffer {
	buf, _ := ctx.Value(bufferKey{}).(*buffer)
	return buf
}

func (b Buffered) Add(ctx context.Context, record EventRecord) error {
	if b.Sink == nil {
		return ErrSinkMissing
	}
	buf := bufferFrom(ctx)
	if buf == nil {
		return b.Sink.Enqueue(ctx, []EventRecord{record})
	}
	buf.mu.Lock()
	buf.records = append(buf.records, record)
	buf.mu.Unlock()
	return nil
}

func (b Buffered) Flush(ctx context.Context) error {
	if b.Sink == nil {
		return ErrSinkMissing
	}
	buf := bufferFrom(ctx)
	if buf == nil {
		return nil
	}
	buf.mu.Lock()
	records := buf.records
	buf.records = nil
	buf.mu.Unlock()
	if len(records) == 0 {
		return nil
	}
	return b.Sink.Enqueue(ctx, records)
}

var _ Outbox = Buffered{}
