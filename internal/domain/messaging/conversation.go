package messaging

import (
	"sort"
	"strings"
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/shared/events"
)

type ConversationID string

// UserID is the stable identity handed out by the identity provider.
type UserID string

// Conversation is a thread between a fixed set of participants. It carries no
// content of its own; UpdatedAt tracks the last message activity.
type Conversation struct {
	ID        ConversationID
	PairKey   string
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

// Participant is a user's membership in a conversation together with their
// read watermark.
type Participant struct {
	ConversationID ConversationID
	UserID         UserID
	JoinedAt       time.Time
	LastReadAt     time.Time
}

type NewDirectParams struct {
	ID        ConversationID
	Self      UserID
	Other     UserID
	CreatedAt time.Time
}

// NewDirectConversation builds a two-party conversation with both participant
// rows. Watermarks start at creation time.
func NewDirectConversation(params NewDirectParams) (*Conversation, []Participant, error) {
	self := UserID(strings.TrimSpace(string(params.Self)))
	other := UserID(strings.TrimSpace(string(params.Other)))
	if self == "" {
		return nil, nil, ErrUnauthenticated
	}
	if other == "" {
		return nil, nil, ErrMissingPeer
	}
	if self == other {
		return nil, nil, ErrSelfConversation
	}
	now := params.CreatedAt.UTC()
	conv := &Conversation{
		ID:        params.ID,
		PairKey:   PairKey(self, other),
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := []Participant{
		{ConversationID: conv.ID, UserID: self, JoinedAt: now, LastReadAt: now},
		{ConversationID: conv.ID, UserID: other, JoinedAt: now, LastReadAt: now},
	}
	conv.Record(ConversationCreated{
		ConversationID: conv.ID,
		Participants:   []UserID{self, other},
		At:             now,
	})
	return conv, participants, nil
}

// PairKey canonicalises an unordered user pair so (a, b) and (b, a) collide.
func PairKey(a, b UserID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// Touch bumps the last-activity timestamp; it never moves backwards.
func (c *Conversation) Touch(at time.Time) {
	at = at.UTC()
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
}

// Advance moves the watermark forward to at. It reports whether anything changed.
func (p *Participant) Advance(at time.Time) bool {
	at = at.UTC()
	if !at.After(p.LastReadAt) {
		return false
	}
	p.LastReadAt = at
	return true
}

// HasUnread reports whether m counts as unread for this participant.
func (p Participant) HasUnread(m *Message) bool {
	if m == nil || m.IsDeleted() {
		return false
	}
	if m.SenderID != "" && m.SenderID == p.UserID {
		return false
	}
	return m.CreatedAt.After(p.LastReadAt)
}

// CountUnread applies HasUnread over msgs.
func (p Participant) CountUnread(msgs []*Message) int {
	n := 0
	for _, m := range msgs {
		if p.HasUnread(m) {
			n++
		}
	}
	return n
}

// Members returns the user ids of participants.
func Members(participants []Participant) []UserID {
	out := make([]UserID, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.UserID)
	}
	return out
}

// Find returns the participant row for user.
func Find(participants []Participant, user UserID) (Participant, bool) {
	for _, p := range participants {
		if p.UserID == user {
			return p, true
		}
	}
	return Participant{}, false
}
