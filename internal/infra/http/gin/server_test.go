package ginserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/wiring"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/config"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/obs"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/ratelimit"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/realtime"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/security"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/storage/memory"
)

const testSecret = "test-secret"

type testEnv struct {
	router http.Handler
	hub    *realtime.Hub
	feed   *realtime.MemoryFeed
	worker *outbox.Worker
	issuer security.TokenIssuer
}

func newTestEnv(t *testing.T, sendLimit int, clock ...func() time.Time) *testEnv {
	t.Helper()
	var now func() time.Time
	if len(clock) > 0 {
		now = clock[0]
	}
	logger := obs.NewLoggerTo(io.Discard, "test", "error")
	events := memory.NewEventStore()
	limiter := ratelimit.NewMemory(sendLimit, time.Minute)
	app := wiring.Build(wiring.Deps{
		UoWFactory: memory.Factory{Store: memory.NewStore()},
		Profiles: memory.NewProfileDirectory(
			profile.Profile{UserID: "alice", Username: "alice"},
			profile.Profile{UserID: "bob", Username: "bob"},
		),
		Sink:        events,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Limiter:     limiter,
		Logger:      logger,
	})

	hub := realtime.NewHub(16)
	feed := realtime.NewMemoryFeed(100)
	dispatcher := &realtime.Dispatcher{Sinks: []realtime.Sink{hub, feed}, Dedupe: realtime.NewMemoryDeduper(0), Logger: logger}
	cfg := config.Config{Env: "test", CORSOrigins: []string{"*"}}
	router := NewRouter(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Chat:           ChatHandler{Commands: app.Commands, Queries: app.Queries, Logger: logger, Now: now},
		Realtime:       RealtimeHandler{Hub: hub, Feed: feed, Heartbeat: time.Second, Logger: logger},
		AuthMiddleware: AuthMiddleware{Verifier: security.NewTokenVerifier(testSecret, "test"), Logger: logger}.Handle,
	})
	return &testEnv{
		router: router,
		hub:    hub,
		feed:   feed,
		worker: &outbox.Worker{Store: events, Producer: dispatcher, Logger: logger},
		issuer: security.TokenIssuer{Secret: []byte(testSecret), Issuer: "test"},
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.issuer.Issue(userID, userID, time.Now())
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, userID, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) conversation(t *testing.T, actor, peer string) dto.Conversation {
	t.Helper()
	rec := e.do(t, actor, http.MethodPost, "/api/v1/conversations", map[string]string{"peer_id": peer})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	return decode[dto.Conversation](t, rec)
}

func (e *testEnv) send(t *testing.T, actor, convID, content string) dto.Message {
	t.Helper()
	rec := e.do(t, actor, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dto.Message](t, rec)
}

func (e *testEnv) unread(t *testing.T, userID string) dto.UnreadSummary {
	t.Helper()
	rec := e.do(t, userID, http.MethodGet, "/api/v1/conversations/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[dto.UnreadSummary](t, rec)
}

func TestAnonymousRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, "", http.MethodGet, "/api/v1/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateConversationIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, "alice", http.MethodPost, "/api/v1/conversations", map[string]string{"peer_id": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[dto.Conversation](t, rec)
	assert.ElementsMatch(t, []string{"alice", "bob"}, first.Participants)

	rec = env.do(t, "bob", http.MethodPost, "/api/v1/conversations", map[string]string{"user_id": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[dto.Conversation](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Created)
}

func TestCreateConversationRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, "alice", http.MethodPost, "/api/v1/conversations", map[string]string{"peer_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, "alice", http.MethodPost, "/api/v1/conversations", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessagingFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.conversation(t, "alice", "bob")

	hello := env.send(t, "alice", conv.ID, "hello bob")
	assert.True(t, hello.IsMine)
	env.send(t, "alice", conv.ID, "are you there?")
	assert.Equal(t, 2, env.unread(t, "bob").TotalUnread)
	assert.Equal(t, 0, env.unread(t, "alice").TotalUnread)

	// opening the conversation marks it read
	rec := env.do(t, "bob", http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[dto.MessageList](t, rec)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "are you there?", page.Items[0].Content)
	assert.False(t, page.Items[0].IsMine)
	assert.Equal(t, 0, env.unread(t, "bob").TotalUnread)

	rec = env.do(t, "bob", http.MethodPatch, "/api/v1/messages/"+hello.ID, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "alice", http.MethodPatch, "/api/v1/messages/"+hello.ID, map[string]string{"content": "hello, bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[dto.Message](t, rec).IsEdited)

	rec = env.do(t, "bob", http.MethodPost, "/api/v1/messages/"+hello.ID+"/reactions", map[string]string{"emoji": "👍"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	toggle := decode[dto.ReactionToggle](t, rec)
	assert.True(t, toggle.Added)
	require.Len(t, toggle.Reactions, 1)
	assert.Equal(t, 1, toggle.Reactions[0].Count)

	rec = env.do(t, "alice", http.MethodDelete, "/api/v1/messages/"+hello.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deleted := decode[dto.Message](t, rec)
	assert.True(t, deleted.IsDeleted)
	assert.Empty(t, deleted.Content)

	rec = env.do(t, "alice", http.MethodPatch, "/api/v1/messages/"+hello.ID, map[string]string{"content": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, "bob", http.MethodGet, "/api/v1/messages/search?q=there", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hits := decode[dto.SearchResults](t, rec)
	require.Len(t, hits.Items, 1)
	assert.Equal(t, "are you there?", hits.Items[0].Message.Content)

	rec = env.do(t, "bob", http.MethodDelete, "/api/v1/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[dto.ClearResult](t, rec).Deleted)
}

func TestOutsidersCannotReadConversation(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.conversation(t, "alice", "bob")
	env.send(t, "alice", conv.ID, "private")

	rec := env.do(t, "mallory", http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, "mallory", http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, "alice", http.MethodGet, "/api/v1/conversations/does-not-exist/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendReplaysIdempotencyKey(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.conversation(t, "alice", "bob")
	path := "/api/v1/conversations/" + conv.ID + "/messages"

	first := env.do(t, "alice", http.MethodPost, path, map[string]string{"content": "once"}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := env.do(t, "alice", http.MethodPost, path, map[string]string{"content": "once"}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, decode[dto.Message](t, first).ID, decode[dto.Message](t, second).ID)
	assert.Equal(t, 1, env.unread(t, "bob").TotalUnread)
}

func TestSendRateLimited(t *testing.T) {
	env := newTestEnv(t, 2)
	conv := env.conversation(t, "alice", "bob")
	env.send(t, "alice", conv.ID, "one")
	env.send(t, "alice", conv.ID, "two")
	rec := env.do(t, "alice", http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", map[string]string{"content": "three"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestInvalidLimitRejected(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.conversation(t, "alice", "bob")
	rec := env.do(t, "alice", http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangesFeedAfterRelay(t *testing.T) {
	env := newTestEnv(t, 0)
	conv := env.conversation(t, "alice", "bob")
	env.send(t, "alice", conv.ID, "ping")
	_, err := env.worker.Drain(context.Background())
	require.NoError(t, err)

	rec := env.do(t, "bob", http.MethodGet, "/api/v1/realtime/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Items      []realtime.FeedEntry `json:"items"`
		NextCursor string               `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Items)
	assert.Equal(t, conv.ID, body.Items[len(body.Items)-1].ConversationID)

	rec = env.do(t, "bob", http.MethodGet, "/api/v1/realtime/changes?cursor="+body.NextCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Items)

	rec = env.do(t, "bob", http.MethodGet, "/api/v1/realtime/changes?cursor=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamDeliversChanges(t *testing.T) {
	env := newTestEnv(t, 0)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	conv := env.conversation(t, "alice", "bob")
	_, err := env.worker.Drain(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/realtime/stream?access_token="+env.token(t, "bob"), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	require.Equal(t, "event:ready", lines.Text())
	require.Eventually(t, func() bool { return env.hub.Subscribers("bob") == 1 }, time.Second, 10*time.Millisecond)

	env.send(t, "alice", conv.ID, "live")
	_, err = env.worker.Drain(context.Background())
	require.NoError(t, err)

	for lines.Scan() {
		line := lines.Text()
		if strings.HasPrefix(line, "event:") && line != "event:ping" && line != "event:ready" {
			assert.Equal(t, "event:message.sent", line)
			return
		}
	}
	t.Fatalf("stream ended without a change: %v", lines.Err())
}

func TestOpeningConversationReadsOnlyListedMessages(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	env := newTestEnv(t, 0, func() time.Time { return current })
	conv := env.conversation(t, "alice", "bob")

	current = base.Add(time.Minute)
	env.send(t, "alice", conv.ID, "shown")
	current = base.Add(time.Hour)
	rec := env.do(t, "bob", http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, decode[dto.MessageList](t, rec).Items, 1)
	assert.Equal(t, 0, env.unread(t, "bob").Conversations[conv.ID])

	current = base.Add(2 * time.Minute)
	env.send(t, "alice", conv.ID, "arrived after the page")
	assert.Equal(t, 1, env.unread(t, "bob").Conversations[conv.ID])
}
