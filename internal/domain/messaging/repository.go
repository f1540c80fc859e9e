package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// ConversationRepository persists conversations and their participants.
type ConversationRepository interface {
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// FindShared returns the oldest conversation both users participate in.
	FindShared(ctx context.Context, a, b UserID) (*Conversation, error)
	// CreateDirect stores the conversation and its participants atomically.
	// It returns ErrConversationTaken when the pair key is already used.
	CreateDirect(ctx context.Context, conv *Conversation, participants []Participant) error
	Touch(ctx context.Context, id ConversationID, at time.Time) error
	Participants(ctx context.Context, id ConversationID) ([]Participant, error)
	// AdvanceWatermark moves last_read_at forward, never backwards.
	AdvanceWatermark(ctx context.Context, id ConversationID, user UserID, at time.Time) error
	Inbox(ctx context.Context, viewer UserID) ([]InboxEntry, error)
	DeleteOrphans(ctx context.Context, olderThan time.Time) (int, error)
}

// MessageRepository persists the per-conversation message log.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	ByID(ctx context.Context, id MessageID) (*Message, error)
	// OwnedBy matches on id AND sender; a mismatch is reported as ErrNotFound.
	OwnedBy(ctx context.Context, id MessageID, sender UserID) (*Message, error)
	// SaveEdit persists an edit only while the row is owned by the sender and live.
	SaveEdit(ctx context.Context, m *Message) error
	// SaveDelete persists a deletion for the owning sender.
	SaveDelete(ctx context.Context, m *Message) error
	Clear(ctx context.Context, id ConversationID, at time.Time) (int, error)
	List(ctx context.Context, id ConversationID, page Page) ([]*Message, error)
	Search(ctx context.Context, params SearchParams) ([]SearchHit, error)
}

// ReactionRepository persists reaction memberships.
type ReactionRepository interface {
	// Toggle removes the triple when present and inserts it otherwise.
	Toggle(ctx context.Context, r Reaction) (bool, error)
	ForMessages(ctx context.Context, ids []MessageID) ([]Reaction, error)
}

// InboxEntry is the derived conversation-list row for a viewer.
type InboxEntry struct {
	Conversation *Conversation
	Viewer       Participant
	Others       []UserID
	LastMessage  *Message
	Unread       int
}

// Page selects a window of messages, newest first.
type Page struct {
	Limit  int
	Before *Cursor
}

// Normalized clamps the limit.
func (p Page) Normalized() Page {
	if p.Limit <= 0 || p.Limit > MaxPageLimit {
		p.Limit = DefaultPageLimit
	}
	return p
}

// Cursor is a keyset position in a conversation log.
type Cursor struct {
	CreatedAt time.Time
	ID        MessageID
}

// CursorFor returns the cursor positioned at m.
func CursorFor(m *Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d|%s", c.CreatedAt.UTC().UnixNano(), c.ID)
}

// Admits reports whether m sorts strictly after the cursor in newest-first order.
func (c Cursor) Admits(m *Message) bool {
	if m.CreatedAt.Equal(c.CreatedAt) {
		return m.ID < c.ID
	}
	return m.CreatedAt.Before(c.CreatedAt)
}

// ParseCursor decodes a cursor produced by Cursor.String. Empty input yields nil.
func ParseCursor(raw string) (*Cursor, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "|")
	if len(parts) != 2 || parts[1] == "" {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: MessageID(parts[1])}, nil
}

// SearchParams scopes a full-text lookup to the viewer's conversations.
type SearchParams struct {
	Viewer         UserID
	Query          string
	ConversationID ConversationID
	Limit          int
}

// SearchHit is a ranked search result.
type SearchHit struct {
	Message *Message
	Snippet string
	Rank    float64
}

type RestoreParams struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Content        *string
	Edited         bool
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RestoreMessage rebuilds a message from storage. A deleted row never carries
// content, whatever the column holds.
func RestoreMessage(p RestoreParams) *Message {
	var body Body = Deleted{}
	if !p.Deleted && p.Content != nil {
		body = Text{Content: *p.Content}
	}
	return &Message{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Body:           body,
		Edited:         p.Edited,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}
