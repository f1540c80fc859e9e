package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloudEventJSON(t *testing.T, id, typ string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"specversion": "1.0",
		"id":          id,
		"type":        typ + ".v1",
		"subject":     "conv-1",
		"time":        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"data":        map[string]string{"message_id": "m1"},
	})
	require.NoError(t, err)
	return raw
}

func TestDecode(t *testing.T) {
	change, err := Decode(cloudEventJSON(t, "e1", "message.sent"), map[string]string{"audience": "alice, bob"})
	require.NoError(t, err)
	assert.Equal(t, "message.sent", change.Type)
	assert.Equal(t, "conv-1", change.ConversationID)
	assert.Equal(t, []string{"alice", "bob"}, change.Audience)
	assert.JSONEq(t, `{"message_id":"m1"}`, string(change.Data))

	_, err = Decode([]byte("{"), nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	_, err = Decode([]byte(`{"type":"x"}`), nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestHubDeliversToAudienceOnly(t *testing.T) {
	hub := NewHub(1)
	bob, cancelBob := hub.Subscribe("bob")
	carol, cancelCarol := hub.Subscribe("carol")
	defer cancelCarol()

	require.NoError(t, hub.Deliver(context.Background(), Change{ID: "1", Audience: []string{"alice", "bob"}}))
	require.NoError(t, hub.Deliver(context.Background(), Change{ID: "2", Audience: []string{"bob"}}))

	got := <-bob
	assert.Equal(t, "1", got.ID)
	assert.EqualValues(t, 1, hub.Dropped(), "full buffers drop instead of blocking")
	select {
	case c := <-carol:
		t.Fatalf("carol received %v", c)
	default:
	}

	cancelBob()
	cancelBob()
	_, open := <-bob
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers("bob"))
	assert.Equal(t, 1, hub.Subscribers("carol"))
}

type captureSink struct {
	changes []Change
}

func (s *captureSink) Deliver(_ context.Context, c Change) error {
	s.changes = append(s.changes, c)
	return nil
}

func TestDispatcherDedupesAndSkipsPoison(t *testing.T) {
	sink := &captureSink{}
	d := &Dispatcher{Sinks: []Sink{sink}, Dedupe: NewMemoryDeduper(2)}
	headers := map[string]string{"audience": "bob"}

	require.NoError(t, d.Dispatch(context.Background(), cloudEventJSON(t, "e1", "message.sent"), headers))
	require.NoError(t, d.Dispatch(context.Background(), cloudEventJSON(t, "e1", "message.sent"), headers))
	require.NoError(t, d.Publish(context.Background(), "topic", "conv-1", cloudEventJSON(t, "e2", "message.edited"), headers))
	require.NoError(t, d.Dispatch(context.Background(), []byte("not json"), headers))

	require.Len(t, sink.changes, 2)
	assert.Equal(t, "message.edited", sink.changes[1].Type)
}

func TestMemoryDeduperForgetsOldest(t *testing.T) {
	d := NewMemoryDeduper(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		seen, err := d.Seen(ctx, id)
		require.NoError(t, err)
		assert.False(t, seen)
	}
	seen, _ := d.Seen(ctx, "c")
	assert.True(t, seen)
	seen, _ = d.Seen(ctx, "a")
	assert.False(t, seen)
}

func TestMemoryFeedPaging(t *testing.T) {
	feed := NewMemoryFeed(3)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4"} {
		require.NoError(t, feed.Deliver(ctx, Change{ID: id, Audience: []string{"bob"}}))
	}
	entries, err := feed.Changes(ctx, "bob", "", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].ID, "retention keeps the newest three")

	rest, err := feed.Changes(ctx, "bob", entries[1].Cursor, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "4", rest[0].ID)

	none, err := feed.Changes(ctx, "alice", "", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = feed.Changes(ctx, "bob", "nope", 0)
	assert.ErrorIs(t, err, ErrInvalidFeedCursor)
	assert.Equal(t, MaxFeedLimit, NormalizeFeedLimit(MaxFeedLimit+1))
}
