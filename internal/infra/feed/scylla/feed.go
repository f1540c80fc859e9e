package scylla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/CypherNinjaa/social-media-sub000/internal/infra/realtime"
)

// Feed stores per-user change logs in the user_changes table. Rows expire
// after TTL.
type Feed struct {
	session *gocql.Session
	ttl     time.Duration
	logger  *slog.Logger
}

func NewFeed(session *gocql.Session, ttl time.Duration, logger *slog.Logger) *Feed {
	return &Feed{session: session, ttl: ttl, logger: logger}
}

var errSessionMissing = errors.New("scylla session not initialized")

// Deliver writes one row per audience member in a single unlogged batch.
func (f *Feed) Deliver(ctx context.Context, change realtime.Change) error {
	if f.session == nil {
		return errSessionMissing
	}
	if len(change.Audience) == 0 {
		return nil
	}
	occurred := change.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	ttl := int(f.ttl.Seconds())
	batch := f.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, user := range change.Audience {
		batch.Query(`INSERT INTO user_changes (user_id, change_id, event_id, type, conversation_id, data, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?) USING TTL ?`,
			user, gocql.UUIDFromTime(occurred), change.ID, change.Type, change.ConversationID, string(change.Data), occurred, ttl)
	}
	if err := f.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("write user changes: %w", err)
	}
	return nil
}

// Changes returns entries after the given timeuuid cursor, oldest first.
func (f *Feed) Changes(ctx context.Context, userID, after string, limit int) ([]realtime.FeedEntry, error) {
	if f.session == nil {
		return nil, errSessionMissing
	}
	limit = realtime.NormalizeFeedLimit(limit)
	var iter *gocql.Iter
	if cursor := strings.TrimSpace(after); cursor != "" {
		id, err := gocql.ParseUUID(cursor)
		if err != nil {
			return nil, realtime.ErrInvalidFeedCursor
		}
		iter = f.session.
			Query(`SELECT change_id, event_id, type, conversation_id, data, occurred_at FROM user_changes WHERE user_id = ? AND change_id > ? LIMIT ?`, userID, id, limit).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
	} else {
		iter = f.session.
			Query(`SELECT change_id, event_id, type, conversation_id, data, occurred_at FROM user_changes WHERE user_id = ? LIMIT ?`, userID, limit).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
	}

	out := make([]realtime.FeedEntry, 0, limit)
	var (
		changeID   gocql.UUID
		eventID    string
		kind       string
		convID     string
		data       string
		occurredAt time.Time
	)
	for iter.Scan(&changeID, &eventID, &kind, &convID, &data, &occurredAt) {
		entry := realtime.FeedEntry{
			Cursor: changeID.String(),
			Change: realtime.Change{
				ID:             eventID,
				Type:           kind,
				ConversationID: convID,
				OccurredAt:     occurredAt.UTC(),
			},
		}
		if data != "" && json.Valid([]byte(data)) {
			entry.Data = json.RawMessage(data)
		}
		out = append(out, entry)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list user changes: %w", err)
	}
	return out, nil
}

var _ realtime.Feed = (*Feed)(nil)
