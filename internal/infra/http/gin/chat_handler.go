package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/apperr"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	conversationsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/conversations"
	messagesapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/messages"
	reactionsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/reactions"
	readsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/reads"
	searchapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/search"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
)

// ChatHandler maps the messaging endpoints onto the command and query buses.
type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
	Now      func() time.Time
}

// CreateConversation resolves the direct conversation with peer_id, creating it once.
func (h ChatHandler) CreateConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		PeerID string `json:"peer_id"`
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.PeerID == "" {
		req.PeerID = req.UserID
	}
	conv, err := commands.Dispatch[conversationsapp.GetOrCreateCommand, dto.Conversation](c.Request.Context(), h.Commands, conversationsapp.GetOrCreateCommand{
		ActorID: userID,
		PeerID:  strings.TrimSpace(req.PeerID),
		Now:     h.now(),
	})
	if err != nil {
		h.respondError(c, err, "get or create conversation", "user_id", userID, "peer_id", req.PeerID)
		return
	}
	code := http.StatusOK
	if conv.Created {
		code = http.StatusCreated
	}
	c.JSON(code, conv)
}

func (h ChatHandler) Inbox(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	inbox, err := queries.Ask[conversationsapp.ListInboxQuery, dto.Inbox](c.Request.Context(), h.Queries, conversationsapp.ListInboxQuery{ViewerID: userID})
	if err != nil {
		h.respondError(c, err, "list inbox", "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, inbox)
}

func (h ChatHandler) Unread(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	summary, err := queries.Ask[conversationsapp.UnreadSummaryQuery, dto.UnreadSummary](c.Request.Context(), h.Queries, conversationsapp.UnreadSummaryQuery{ViewerID: userID})
	if err != nil {
		h.respondError(c, err, "unread summary", "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListMessages returns a page of the log. Opening the conversation (no
// cursor) also marks it read.
func (h ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	query := messagesapp.ListQuery{
		ViewerID:       userID,
		ConversationID: conversationID,
		Limit:          limit,
		Cursor:         c.Query("cursor"),
	}
	page, err := queries.Ask[messagesapp.ListQuery, dto.MessageList](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.respondError(c, err, "list messages", "conversation_id", conversationID, "user_id", userID)
		return
	}
	// read only through what this page showed
	if query.FirstPage() && len(page.Items) > 0 {
		_, err := commands.Dispatch[readsapp.MarkReadCommand, dto.ReadReceipt](c.Request.Context(), h.Commands, readsapp.MarkReadCommand{
			ActorID:        userID,
			ConversationID: conversationID,
			Now:            page.Items[0].CreatedAt,
		})
		if err != nil && h.Logger != nil {
			h.Logger.Warn("mark read on open failed", "conversation_id", conversationID, "user_id", userID, "error", err)
		}
	}
	c.JSON(http.StatusOK, page)
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := commands.Dispatch[messagesapp.SendCommand, dto.Message](c.Request.Context(), h.Commands, messagesapp.SendCommand{
		ActorID:        userID,
		ConversationID: conversationID,
		Content:        req.Content,
		ClientKey:      c.GetHeader("Idempotency-Key"),
		Now:            h.now(),
	})
	if err != nil {
		h.respondError(c, err, "send message", "conversation_id", conversationID, "user_id", userID)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h ChatHandler) ClearConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	res, err := commands.Dispatch[messagesapp.ClearCommand, dto.ClearResult](c.Request.Context(), h.Commands, messagesapp.ClearCommand{
		ActorID:        userID,
		ConversationID: conversationID,
		Now:            h.now(),
	})
	if err != nil {
		h.respondError(c, err, "clear conversation", "conversation_id", conversationID, "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	receipt, err := commands.Dispatch[readsapp.MarkReadCommand, dto.ReadReceipt](c.Request.Context(), h.Commands, readsapp.MarkReadCommand{
		ActorID:        userID,
		ConversationID: conversationID,
		Now:            h.now(),
	})
	if err != nil {
		h.respondError(c, err, "mark read", "conversation_id", conversationID, "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h ChatHandler) EditMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := strings.TrimSpace(c.Param("id"))
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := commands.Dispatch[messagesapp.EditCommand, dto.Message](c.Request.Context(), h.Commands, messagesapp.EditCommand{
		ActorID:   userID,
		MessageID: messageID,
		Content:   req.Content,
		Now:       h.now(),
	})
	if err != nil {
		h.respondError(c, err, "edit message", "message_id", messageID, "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := strings.TrimSpace(c.Param("id"))
	msg, err := commands.Dispatch[messagesapp.DeleteCommand, dto.Message](c.Request.Context(), h.Commands, messagesapp.DeleteCommand{
		ActorID:   userID,
		MessageID: messageID,
		Now:       h.now(),
	})
	if err != nil {
		h.respondError(c, err, "delete message", "message_id", messageID, "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h ChatHandler) ToggleReaction(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := strings.TrimSpace(c.Param("id"))
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	res, err := commands.Dispatch[reactionsapp.ToggleCommand, dto.ReactionToggle](c.Request.Context(), h.Commands, reactionsapp.ToggleCommand{
		ActorID:   userID,
		MessageID: messageID,
		Emoji:     req.Emoji,
		Now:       h.now(),
	})
	if err != nil {
		h.respondError(c, err, "toggle reaction", "message_id", messageID, "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ChatHandler) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	res, err := queries.Ask[searchapp.Query, dto.SearchResults](c.Request.Context(), h.Queries, searchapp.Query{
		ViewerID:       userID,
		Text:           c.Query("q"),
		ConversationID: strings.TrimSpace(c.Query("conversation_id")),
		Limit:          limit,
	})
	if err != nil {
		h.respondError(c, err, "search messages", "user_id", userID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ChatHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h ChatHandler) respondError(c *gin.Context, err error, action string, attrs ...any) {
	st := apperr.Status(err)
	code := httpStatus(st.Code())
	if h.Logger != nil {
		level := slog.LevelDebug
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.Logger.Log(c.Request.Context(), level, "messaging request failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	c.JSON(code, gin.H{"error": st.Message(), "code": st.Code().String()})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Canceled:
		return http.StatusRequestTimeout
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit reads ?limit; absent means the handler default.
func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return value, true
}

var _ ChatHTTP = ChatHandler{}
