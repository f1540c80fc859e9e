package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"github.com/CypherNinjaa/social-media-sub000/internal/infra/realtime"
)

const defaultHeartbeat = 25 * time.Second

// RealtimeHandler serves the per-user change stream over SSE and the
// polling feed for clients that cannot hold a connection open.
type RealtimeHandler struct {
	Hub       *realtime.Hub
	Feed      realtime.Feed
	Heartbeat time.Duration
	Logger    *slog.Logger
}

func (h RealtimeHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime unavailable"})
		return
	}
	changes, cancel := h.Hub.Subscribe(userID)
	defer cancel()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"user_id": userID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, open := <-changes:
			if !open {
				return false
			}
			c.SSEvent(change.Type, change)
			return true
		case <-ticker.C:
			c.SSEvent("ping", strconv.FormatInt(time.Now().Unix(), 10))
			return true
		}
	})
	if h.Logger != nil {
		h.Logger.Debug("realtime stream closed", "user_id", userID)
	}
}

// Changes returns feed entries after ?cursor, oldest first.
func (h RealtimeHandler) Changes(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime unavailable"})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	after := c.Query("cursor")
	entries, err := h.Feed.Changes(c.Request.Context(), userID, after, limit)
	if err != nil {
		if errors.Is(err, realtime.ErrInvalidFeedCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("read change feed", "user_id", userID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	next := after
	if len(entries) > 0 {
		next = entries[len(entries)-1].Cursor
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "next_cursor": next})
}

var _ RealtimeHTTP = RealtimeHandler{}
