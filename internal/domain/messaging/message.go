package messaging

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/shared/events"
)

const (
	MaxContentRunes = 4000
	DeletedPreview  = "This message was deleted"
)

type MessageID string

// Body is the payload of a message: either Text or Deleted.
type Body interface {
	isBody()
}

// Text is live message content.
type Text struct {
	Content string
}

// Deleted marks a message whose content was destroyed. It carries nothing.
type Deleted struct{}

func (Text) isBody()    {}
func (Deleted) isBody() {}

// Message is a single entry in a conversation log. SenderID is empty when the
// sender's account has been removed.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Body           Body
	Edited         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	events.EventRecorder
}

type NewMessageParams struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Content        string
	CreatedAt      time.Time
}

// NewMessage validates content and creates a live message.
func NewMessage(params NewMessageParams) (*Message, error) {
	if params.SenderID == "" {
		return nil, ErrUnauthenticated
	}
	content, err := NormalizeContent(params.Content)
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	m := &Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Body:           Text{Content: content},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.Record(MessageSent{MessageID: m.ID, ConversationID: m.ConversationID, SenderID: m.SenderID, At: now})
	return m, nil
}

// NormalizeContent trims content and enforces the length limits.
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return "", ErrContentTooLong
	}
	return content, nil
}

// IsDeleted reports whether the message reached its terminal state.
func (m *Message) IsDeleted() bool {
	_, ok := m.Body.(Deleted)
	return ok
}

// Content returns the live content; ok is false for deleted messages.
func (m *Message) Content() (string, bool) {
	text, ok := m.Body.(Text)
	if !ok {
		return "", false
	}
	return text.Content, true
}

// Preview is the inbox rendering of the message.
func (m *Message) Preview(max int) string {
	content, ok := m.Content()
	if !ok {
		return DeletedPreview
	}
	return trimSnippet(content, max)
}

// Live returns the mutable view of a message that still has content. Deleted
// messages have no live view, so they cannot be edited.
func (m *Message) Live() (LiveMessage, bool) {
	if m.IsDeleted() {
		return LiveMessage{}, false
	}
	return LiveMessage{msg: m}, true
}

// LiveMessage is a message in the Text state.
type LiveMessage struct {
	msg *Message
}

// Edit replaces the content and flags the message as edited.
func (l LiveMessage) Edit(raw string, now time.Time) error {
	content, err := NormalizeContent(raw)
	if err != nil {
		return err
	}
	now = now.UTC()
	l.msg.Body = Text{Content: content}
	l.msg.Edited = true
	l.msg.UpdatedAt = now
	l.msg.Record(MessageEdited{MessageID: l.msg.ID, ConversationID: l.msg.ConversationID, At: now})
	return nil
}

// Delete destroys the content. The transition is irreversible.
func (l LiveMessage) Delete(now time.Time) {
	now = now.UTC()
	l.msg.Body = Deleted{}
	l.msg.UpdatedAt = now
	l.msg.Record(MessageDeleted{MessageID: l.msg.ID, ConversationID: l.msg.ConversationID, At: now})
}

// Message returns the underlying message.
func (l LiveMessage) Message() *Message {
	return l.msg
}

func trimSnippet(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
