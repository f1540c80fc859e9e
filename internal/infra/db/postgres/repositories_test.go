package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

var (
	dbOnce sync.Once
	testDB *gorm.DB
	dbErr  error
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	dbOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("messaging"),
			tcpostgres.WithUsername("messaging"),
			tcpostgres.WithPassword("messaging"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			dbErr = err
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			dbErr = err
			return
		}
		if testDB, dbErr = Open(ctx, dsn, nil); dbErr != nil {
			return
		}
		dbErr = Migrate(ctx, testDB)
	})
	if dbErr != nil {
		t.Skipf("postgres unavailable: %v", dbErr)
	}
	return testDB
}

type fixture struct {
	unit uow.UnitOfWork
	ctx  context.Context
	base time.Time
}

func newFixture(t *testing.T) fixture {
	db := openTestDB(t)
	ctx := context.Background()
	unit, err := Factory{DB: db}.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = unit.Rollback(ctx) })
	return fixture{unit: unit, ctx: ctx, base: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (f fixture) conversation(t *testing.T, a, b messaging.UserID) *messaging.Conversation {
	conv, participants, err := messaging.NewDirectConversation(messaging.NewDirectParams{
		ID: messaging.ConversationID(uuid.NewString()), Self: a, Other: b, CreatedAt: f.base,
	})
	require.NoError(t, err)
	require.NoError(t, f.unit.Conversations().CreateDirect(f.ctx, conv, participants))
	return conv
}

func (f fixture) send(t *testing.T, conv *messaging.Conversation, from messaging.UserID, text string, at time.Duration) *messaging.Message {
	id, err := uuid.NewV7()
	require.NoError(t, err)
	m, err := messaging.NewMessage(messaging.NewMessageParams{
		ID: messaging.MessageID(id.String()), ConversationID: conv.ID, SenderID: from, Content: text, CreatedAt: f.base.Add(at),
	})
	require.NoError(t, err)
	require.NoError(t, f.unit.Messages().Append(f.ctx, m))
	require.NoError(t, f.unit.Conversations().Touch(f.ctx, conv.ID, m.CreatedAt))
	return m
}

func TestCreateDirectRejectsDuplicatePair(t *testing.T) {
	f := newFixture(t)
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	first := f.conversation(t, a, b)

	dup, participants, err := messaging.NewDirectConversation(messaging.NewDirectParams{
		ID: messaging.ConversationID(uuid.NewString()), Self: b, Other: a, CreatedAt: f.base,
	})
	require.NoError(t, err)
	err = f.unit.Conversations().CreateDirect(f.ctx, dup, participants)
	require.ErrorIs(t, err, messaging.ErrConversationTaken)

	shared, err := f.unit.Conversations().FindShared(f.ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, shared.ID)
}

func TestInboxUnreadAndWatermark(t *testing.T) {
	f := newFixture(t)
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	conv := f.conversation(t, a, b)
	f.send(t, conv, a, "hello there", time.Minute)
	last := f.send(t, conv, a, "are you around", 2*time.Minute)

	inbox, err := f.unit.Conversations().Inbox(f.ctx, b)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, 2, inbox[0].Unread)
	assert.Equal(t, []messaging.UserID{a}, inbox[0].Others)
	require.NotNil(t, inbox[0].LastMessage)
	assert.Equal(t, last.ID, inbox[0].LastMessage.ID)

	require.NoError(t, f.unit.Conversations().AdvanceWatermark(f.ctx, conv.ID, b, last.CreatedAt))
	require.NoError(t, f.unit.Conversations().AdvanceWatermark(f.ctx, conv.ID, b, f.base))

	inbox, err = f.unit.Conversations().Inbox(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, inbox[0].Unread)
	assert.True(t, inbox[0].Viewer.LastReadAt.Equal(last.CreatedAt), "watermark never moves back")

	err = f.unit.Conversations().AdvanceWatermark(f.ctx, conv.ID, messaging.UserID(uuid.NewString()), f.base)
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)
}

func TestEditAfterDeleteFails(t *testing.T) {
	f := newFixture(t)
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	conv := f.conversation(t, a, b)
	m := f.send(t, conv, a, "draft", time.Minute)

	stored, err := f.unit.Messages().OwnedBy(f.ctx, m.ID, a)
	require.NoError(t, err)
	live, ok := stored.Live()
	require.True(t, ok)
	live.Delete(f.base.Add(2 * time.Minute))
	require.NoError(t, f.unit.Messages().SaveDelete(f.ctx, stored))

	content := "resurrected"
	edited := messaging.RestoreMessage(messaging.RestoreParams{
		ID: m.ID, ConversationID: conv.ID, SenderID: a, Content: &content, Edited: true,
		CreatedAt: m.CreatedAt, UpdatedAt: f.base.Add(3 * time.Minute),
	})
	require.ErrorIs(t, f.unit.Messages().SaveEdit(f.ctx, edited), messaging.ErrMessageDeleted)

	got, err := f.unit.Messages().ByID(f.ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	_, err = f.unit.Messages().OwnedBy(f.ctx, m.ID, b)
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestListPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	conv := f.conversation(t, a, b)
	var sent []*messaging.Message
	for i := 0; i < 5; i++ {
		sent = append(sent, f.send(t, conv, a, "msg", time.Duration(i+1)*time.Minute))
	}

	page, err := f.unit.Messages().List(f.ctx, conv.ID, messaging.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, sent[4].ID, page[0].ID)
	assert.Equal(t, sent[3].ID, page[1].ID)

	cursor := messaging.CursorFor(page[1])
	page, err = f.unit.Messages().List(f.ctx, conv.ID, messaging.Page{Limit: 10, Before: &cursor})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, sent[0].ID, page[2].ID)
}

func TestClearAndSearch(t *testing.T) {
	f := newFixture(t)
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	conv := f.conversation(t, a, b)
	f.send(t, conv, a, "pizza tonight?", time.Minute)
	f.send(t, conv, b, "pizza sounds great, pizza always", 2*time.Minute)
	f.send(t, conv, b, "unrelated", 3*time.Minute)

	hits, err := f.unit.Messages().Search(f.ctx, messaging.SearchParams{Viewer: a, Query: "pizza", Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[0].Rank, hits[1].Rank)
	assert.Contains(t, hits[0].Snippet, "pizza")

	outsider, err := f.unit.Messages().Search(f.ctx, messaging.SearchParams{Viewer: messaging.UserID(uuid.NewString()), Query: "pizza"})
	require.NoError(t, err)
	assert.Empty(t, outsider)

	n, err := f.unit.Messages().Clear(f.ctx, conv.ID, f.base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err = f.unit.Messages().Search(f.ctx, messaging.SearchParams{Viewer: a, Query: "pizza"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReactionToggleRoundTrip(t *testing.T) {
	f := newFixture(t)
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	conv := f.conversation(t, a, b)
	m := f.send(t, conv, a, "nice", time.Minute)
	r := messaging.Reaction{MessageID: m.ID, UserID: b, Emoji: "👍", CreatedAt: f.base}

	added, err := f.unit.Reactions().Toggle(f.ctx, r)
	require.NoError(t, err)
	assert.True(t, added)
	list, err := f.unit.Reactions().ForMessages(f.ctx, []messaging.MessageID{m.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	added, err = f.unit.Reactions().Toggle(f.ctx, r)
	require.NoError(t, err)
	assert.False(t, added)
	list, err = f.unit.Reactions().ForMessages(f.ctx, []messaging.MessageID{m.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteOrphans(t *testing.T) {
	f := newFixture(t)
	orphan := &messaging.Conversation{ID: messaging.ConversationID(uuid.NewString()), CreatedAt: f.base, UpdatedAt: f.base}
	require.NoError(t, f.unit.Conversations().CreateDirect(f.ctx, orphan, []messaging.Participant{
		{ConversationID: orphan.ID, UserID: messaging.UserID(uuid.NewString()), JoinedAt: f.base, LastReadAt: f.base},
	}))
	kept := f.conversation(t, messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString()))

	removed, err := f.unit.Conversations().DeleteOrphans(f.ctx, f.base.Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)

	_, err = f.unit.Conversations().ByID(f.ctx, orphan.ID)
	assert.ErrorIs(t, err, messaging.ErrNotFound)
	_, err = f.unit.Conversations().ByID(f.ctx, kept.ID)
	assert.NoError(t, err)
}

func TestInvalidIDsAreNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.unit.Conversations().ByID(f.ctx, "not-a-uuid")
	assert.ErrorIs(t, err, messaging.ErrNotFound)
	_, err = f.unit.Messages().ByID(f.ctx, "nope")
	assert.ErrorIs(t, err, messaging.ErrNotFound)

	conv := f.conversation(t, messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString()))
	cursor, err := messaging.ParseCursor("123|abc")
	require.NoError(t, err)
	_, err = f.unit.Messages().List(f.ctx, conv.ID, messaging.Page{Limit: 10, Before: cursor})
	assert.ErrorIs(t, err, messaging.ErrInvalidCursor)
}

func TestConcurrentCreateDirectKeepsOnePair(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a, b := messaging.UserID(uuid.NewString()), messaging.UserID(uuid.NewString())
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		self, other := a, b
		if i%2 == 1 {
			self, other = b, a
		}
		wg.Add(1)
		go func(i int, self, other messaging.UserID) {
			defer wg.Done()
			conv, participants, err := messaging.NewDirectConversation(messaging.NewDirectParams{
				ID: messaging.ConversationID(uuid.NewString()), Self: self, Other: other, CreatedAt: base,
			})
			if err != nil {
				errs[i] = err
				return
			}
			unit, err := Factory{DB: db}.Begin(ctx, uow.TxOptions{})
			if err != nil {
				errs[i] = err
				return
			}
			if errs[i] = unit.Conversations().CreateDirect(ctx, conv, participants); errs[i] != nil {
				_ = unit.Rollback(ctx)
				return
			}
			errs[i] = unit.Commit(ctx)
		}(i, self, other)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, messaging.ErrConversationTaken)
	}
	assert.Equal(t, 1, created)

	unit, err := Factory{DB: db}.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = unit.Rollback(ctx) }()
	forward, err := unit.Conversations().FindShared(ctx, a, b)
	require.NoError(t, err)
	backward, err := unit.Conversations().FindShared(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, forward.ID, backward.ID)
}

func TestInboxOrdersByUpdatedAt(t *testing.T) {
	f := newFixture(t)
	viewer := messaging.UserID(uuid.NewString())
	older := f.conversation(t, viewer, messaging.UserID(uuid.NewString()))
	newer := f.conversation(t, viewer, messaging.UserID(uuid.NewString()))
	f.send(t, newer, viewer, "first", time.Minute)
	f.send(t, older, viewer, "later", 2*time.Minute)

	inbox, err := f.unit.Conversations().Inbox(f.ctx, viewer)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, older.ID, inbox[0].Conversation.ID)
	assert.Equal(t, newer.ID, inbox[1].Conversation.ID)
}
