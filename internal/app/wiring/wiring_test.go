package wiring

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	conversationsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/conversations"
	messagesapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/messages"
	reactionsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/reactions"
	readsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/reads"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/middleware"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/ratelimit"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/storage/memory"
)

type harness struct {
	t      *testing.T
	app    Application
	events *memory.EventStore
	clock  time.Time
}

func newHarness(t *testing.T, limiter middleware.Limiter) *harness {
	t.Helper()
	events := memory.NewEventStore()
	app := Build(Deps{
		UoWFactory:  memory.Factory{Store: memory.NewStore()},
		Profiles: memory.NewProfileDirectory(
			profile.Profile{UserID: "alice", Username: "Alice"},
			profile.Profile{UserID: "bob", Username: "Bob"},
		),
		Sink:        events,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Limiter:     limiter,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &harness{t: t, app: app, events: events, clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (h *harness) tick() time.Time {
	h.clock = h.clock.Add(time.Second)
	return h.clock
}

func (h *harness) resolve(actor, peer string) dto.Conversation {
	h.t.Helper()
	conv, err := commands.Dispatch[conversationsapp.GetOrCreateCommand, dto.Conversation](context.Background(), h.app.Commands,
		conversationsapp.GetOrCreateCommand{ActorID: actor, PeerID: peer, Now: h.tick()})
	require.NoError(h.t, err)
	return conv
}

func (h *harness) send(actor, convID, content string) (dto.Message, error) {
	return commands.Dispatch[messagesapp.SendCommand, dto.Message](context.Background(), h.app.Commands,
		messagesapp.SendCommand{ActorID: actor, ConversationID: convID, Content: content, Now: h.tick()})
}

func (h *harness) mustSend(actor, convID, content string) dto.Message {
	h.t.Helper()
	msg, err := h.send(actor, convID, content)
	require.NoError(h.t, err)
	return msg
}

func (h *harness) markRead(actor, convID string) {
	h.t.Helper()
	_, err := commands.Dispatch[readsapp.MarkReadCommand, dto.ReadReceipt](context.Background(), h.app.Commands,
		readsapp.MarkReadCommand{ActorID: actor, ConversationID: convID, Now: h.tick()})
	require.NoError(h.t, err)
}

func (h *harness) toggle(actor, messageID, emoji string) (dto.ReactionToggle, error) {
	return commands.Dispatch[reactionsapp.ToggleCommand, dto.ReactionToggle](context.Background(), h.app.Commands,
		reactionsapp.ToggleCommand{ActorID: actor, MessageID: messageID, Emoji: emoji, Now: h.tick()})
}

func (h *harness) inbox(viewer string) dto.Inbox {
	h.t.Helper()
	inbox, err := queries.Ask[conversationsapp.ListInboxQuery, dto.Inbox](context.Background(), h.app.Queries,
		conversationsapp.ListInboxQuery{ViewerID: viewer})
	require.NoError(h.t, err)
	return inbox
}

func (h *harness) unread(viewer, convID string) int {
	h.t.Helper()
	summary, err := queries.Ask[conversationsapp.UnreadSummaryQuery, dto.UnreadSummary](context.Background(), h.app.Queries,
		conversationsapp.UnreadSummaryQuery{ViewerID: viewer})
	require.NoError(h.t, err)
	return summary.Conversations[convID]
}

func TestDirectMessageScenario(t *testing.T) {
	h := newHarness(t, nil)

	conv := h.resolve("alice", "bob")
	require.True(t, conv.Created)
	msg := h.mustSend("alice", conv.ID, "hi")
	assert.Equal(t, 1, h.unread("bob", conv.ID))
	assert.Equal(t, 0, h.unread("alice", conv.ID))

	h.markRead("bob", conv.ID)
	assert.Equal(t, 0, h.unread("bob", conv.ID))

	_, err := commands.Dispatch[messagesapp.DeleteCommand, dto.Message](context.Background(), h.app.Commands,
		messagesapp.DeleteCommand{ActorID: "alice", MessageID: msg.ID, Now: h.tick()})
	require.NoError(t, err)
	inbox := h.inbox("bob")
	require.Len(t, inbox.Items, 1)
	require.NotNil(t, inbox.Items[0].LastMessage)
	assert.Equal(t, messaging.DeletedPreview, inbox.Items[0].LastMessage.Preview)
	assert.True(t, inbox.Items[0].LastMessage.IsDeleted)

	on, err := h.toggle("bob", msg.ID, "👍")
	require.NoError(t, err)
	assert.True(t, on.Added)
	require.Len(t, on.Reactions, 1)
	off, err := h.toggle("bob", msg.ID, "👍")
	require.NoError(t, err)
	assert.False(t, off.Added)
	assert.Empty(t, off.Reactions)
	page, err := queries.Ask[messagesapp.ListQuery, dto.MessageList](context.Background(), h.app.Queries,
		messagesapp.ListQuery{ViewerID: "bob", ConversationID: conv.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.Items[0].Reactions)
}

func TestResolutionIsIdempotentInEitherOrder(t *testing.T) {
	h := newHarness(t, nil)
	first := h.resolve("alice", "bob")
	second := h.resolve("bob", "alice")
	third := h.resolve("alice", "bob")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID)
	assert.False(t, second.Created)
	assert.Len(t, h.inbox("alice").Items, 1)
}

func TestDeletedMessageCannotBeEdited(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	msg := h.mustSend("alice", conv.ID, "secret")

	deleted, err := commands.Dispatch[messagesapp.DeleteCommand, dto.Message](context.Background(), h.app.Commands,
		messagesapp.DeleteCommand{ActorID: "alice", MessageID: msg.ID, Now: h.tick()})
	require.NoError(t, err)
	assert.Empty(t, deleted.Content)

	_, err = commands.Dispatch[messagesapp.EditCommand, dto.Message](context.Background(), h.app.Commands,
		messagesapp.EditCommand{ActorID: "alice", MessageID: msg.ID, Content: "resurrected", Now: h.tick()})
	require.ErrorIs(t, err, messaging.ErrMessageDeleted)

	page, err := queries.Ask[messagesapp.ListQuery, dto.MessageList](context.Background(), h.app.Queries,
		messagesapp.ListQuery{ViewerID: "alice", ConversationID: conv.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsDeleted)
	assert.Empty(t, page.Items[0].Content)
}

func TestOnlySenderMayEdit(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	msg := h.mustSend("alice", conv.ID, "mine")
	_, err := commands.Dispatch[messagesapp.EditCommand, dto.Message](context.Background(), h.app.Commands,
		messagesapp.EditCommand{ActorID: "bob", MessageID: msg.ID, Content: "yours", Now: h.tick()})
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestReactionToggleRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	msg := h.mustSend("alice", conv.ID, "react to me")

	on, err := h.toggle("bob", msg.ID, "👍")
	require.NoError(t, err)
	assert.True(t, on.Added)
	require.Len(t, on.Reactions, 1)
	assert.Equal(t, []string{"bob"}, on.Reactions[0].UserIDs)
	assert.Equal(t, []string{"Bob"}, on.Reactions[0].Usernames)

	page, err := queries.Ask[messagesapp.ListQuery, dto.MessageList](context.Background(), h.app.Queries,
		messagesapp.ListQuery{ViewerID: "alice", ConversationID: conv.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Len(t, page.Items[0].Reactions, 1)
	assert.Equal(t, []string{"Bob"}, page.Items[0].Reactions[0].Usernames)

	off, err := h.toggle("bob", msg.ID, "👍")
	require.NoError(t, err)
	assert.False(t, off.Added)
	assert.Empty(t, off.Reactions)

	_, err = h.toggle("mallory", msg.ID, "👍")
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)
}

func TestUnreadMonotonicity(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	h.mustSend("alice", conv.ID, "one")
	h.mustSend("alice", conv.ID, "two")
	assert.Equal(t, 2, h.unread("bob", conv.ID))

	h.markRead("bob", conv.ID)
	assert.Equal(t, 0, h.unread("bob", conv.ID))

	h.mustSend("bob", conv.ID, "reply")
	assert.Equal(t, 0, h.unread("bob", conv.ID), "own messages never count")
	h.mustSend("alice", conv.ID, "three")
	assert.Equal(t, 1, h.unread("bob", conv.ID))
	h.mustSend("alice", conv.ID, "four")
	assert.Equal(t, 2, h.unread("bob", conv.ID))
}

func TestClearThenNewMessage(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	h.mustSend("alice", conv.ID, "old one")
	h.mustSend("alice", conv.ID, "old two")

	res, err := commands.Dispatch[messagesapp.ClearCommand, dto.ClearResult](context.Background(), h.app.Commands,
		messagesapp.ClearCommand{ActorID: "bob", ConversationID: conv.ID, Now: h.tick()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 0, h.unread("bob", conv.ID))

	h.mustSend("alice", conv.ID, "fresh")
	assert.Equal(t, 1, h.unread("bob", conv.ID))
	inbox := h.inbox("bob")
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, "fresh", inbox.Items[0].LastMessage.Preview)
	assert.Equal(t, 1, inbox.TotalUnread)
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")

	_, err := h.send("alice", conv.ID, "   ")
	assert.ErrorIs(t, err, messaging.ErrEmptyContent)
	_, err = h.send("", conv.ID, "hi")
	assert.ErrorIs(t, err, messaging.ErrUnauthenticated)
	_, err = h.send("mallory", conv.ID, "hi")
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)
	_, err = h.send("alice", "", "hi")
	assert.ErrorIs(t, err, middleware.ErrValidation)
}

func TestSendReplaysClientKey(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	cmd := messagesapp.SendCommand{ActorID: "alice", ConversationID: conv.ID, Content: "once", ClientKey: "retry-1", Now: h.tick()}

	first, err := commands.Dispatch[messagesapp.SendCommand, dto.Message](context.Background(), h.app.Commands, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[messagesapp.SendCommand, dto.Message](context.Background(), h.app.Commands, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.unread("bob", conv.ID))
}

func TestSendRateLimit(t *testing.T) {
	h := newHarness(t, ratelimit.NewMemory(1, time.Hour))
	conv := h.resolve("alice", "bob")
	h.mustSend("alice", conv.ID, "first")
	_, err := h.send("alice", conv.ID, "second")
	assert.ErrorIs(t, err, middleware.ErrRateLimited)
	h.mustSend("bob", conv.ID, "separate bucket")
}

func TestCommandsEnqueueEventsForParticipants(t *testing.T) {
	h := newHarness(t, nil)
	conv := h.resolve("alice", "bob")
	h.mustSend("alice", conv.ID, "hi")

	doc, err := h.events.Claim(context.Background(), "test")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "conversation.created", doc.Name)
	assert.ElementsMatch(t, []string{"alice", "bob"}, doc.Record().Audience())
	assert.GreaterOrEqual(t, h.events.Pending(), 2)
}

func TestInboxOrdersByLatestActivity(t *testing.T) {
	h := newHarness(t, nil)
	withBob := h.resolve("alice", "bob")
	withCarol := h.resolve("alice", "carol")
	h.mustSend("carol", withCarol.ID, "first")
	h.mustSend("bob", withBob.ID, "newer")

	inbox := h.inbox("alice")
	require.Len(t, inbox.Items, 2)
	assert.Equal(t, withBob.ID, inbox.Items[0].ID)
	assert.Equal(t, withCarol.ID, inbox.Items[1].ID)

	h.mustSend("alice", withCarol.ID, "bump")
	inbox = h.inbox("alice")
	require.Len(t, inbox.Items, 2)
	assert.Equal(t, withCarol.ID, inbox.Items[0].ID)
	assert.False(t, inbox.Items[0].UpdatedAt.Before(inbox.Items[1].UpdatedAt))
}

func TestConcurrentResolutionYieldsOneConversation(t *testing.T) {
	h := newHarness(t, nil)
	const racers = 20
	ids := make([]string, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		actor, peer := "alice", "bob"
		if i%2 == 1 {
			actor, peer = peer, actor
		}
		wg.Add(1)
		go func(i int, actor, peer string) {
			defer wg.Done()
			conv, err := commands.Dispatch[conversationsapp.GetOrCreateCommand, dto.Conversation](context.Background(), h.app.Commands,
				conversationsapp.GetOrCreateCommand{ActorID: actor, PeerID: peer})
			ids[i], errs[i] = conv.ID, err
		}(i, actor, peer)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, h.inbox("alice").Items, 1)
	assert.Len(t, h.inbox("bob").Items, 1)
}
