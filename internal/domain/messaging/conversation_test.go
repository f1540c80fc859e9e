package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDirectConversation(t *testing.T) {
	_, _, err := NewDirectConversation(NewDirectParams{Self: "alice", Other: " alice "})
	assert.ErrorIs(t, err, ErrSelfConversation)
	_, _, err = NewDirectConversation(NewDirectParams{Self: "alice"})
	assert.ErrorIs(t, err, ErrMissingPeer)
	_, _, err = NewDirectConversation(NewDirectParams{Other: "bob"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	conv, parts, err := NewDirectConversation(NewDirectParams{ID: "c1", Self: "bob", Other: "alice", CreatedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, "alice:bob", conv.PairKey)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.Equal(t, t0, p.LastReadAt)
	}
	assert.Len(t, conv.PullEvents(), 1)
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}

func TestTouchAndAdvanceNeverMoveBackwards(t *testing.T) {
	conv := &Conversation{UpdatedAt: t0}
	conv.Touch(t0.Add(-time.Hour))
	assert.Equal(t, t0, conv.UpdatedAt)
	conv.Touch(t0.Add(time.Hour))
	assert.Equal(t, t0.Add(time.Hour), conv.UpdatedAt)

	p := Participant{UserID: "bob", LastReadAt: t0}
	assert.False(t, p.Advance(t0))
	assert.False(t, p.Advance(t0.Add(-time.Second)))
	assert.True(t, p.Advance(t0.Add(time.Second)))
	assert.Equal(t, t0.Add(time.Second), p.LastReadAt)
}

func TestCountUnread(t *testing.T) {
	bob := Participant{UserID: "bob", LastReadAt: t0}
	deleted := &Message{SenderID: "alice", Body: Deleted{}, CreatedAt: t0.Add(time.Minute)}
	msgs := []*Message{
		{SenderID: "alice", Body: Text{Content: "before"}, CreatedAt: t0.Add(-time.Minute)},
		{SenderID: "alice", Body: Text{Content: "after"}, CreatedAt: t0.Add(time.Minute)},
		{SenderID: "bob", Body: Text{Content: "mine"}, CreatedAt: t0.Add(time.Minute)},
		{SenderID: "", Body: Text{Content: "from removed account"}, CreatedAt: t0.Add(time.Minute)},
		deleted,
	}
	assert.Equal(t, 2, bob.CountUnread(msgs))
}

func TestGroupReactions(t *testing.T) {
	assert.Nil(t, GroupReactions(nil))
	groups := GroupReactions([]Reaction{
		{MessageID: "m1", UserID: "bob", Emoji: "🔥", CreatedAt: t0.Add(2 * time.Second)},
		{MessageID: "m1", UserID: "alice", Emoji: "👍", CreatedAt: t0},
		{MessageID: "m1", UserID: "bob", Emoji: "👍", CreatedAt: t0.Add(time.Second)},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, []UserID{"alice", "bob"}, groups[0].UserIDs)
	assert.Equal(t, "🔥", groups[1].Emoji)
	assert.Equal(t, []string{"bob", "alice"}, Reactors([]Reaction{
		{UserID: "bob", Emoji: "🔥"}, {UserID: "alice", Emoji: "👍"}, {UserID: "bob", Emoji: "👍"},
	}))

	_, err := NormalizeEmoji("   ")
	assert.ErrorIs(t, err, ErrInvalidEmoji)
	emoji, err := NormalizeEmoji(" 👍 ")
	require.NoError(t, err)
	assert.Equal(t, "👍", emoji)
}
