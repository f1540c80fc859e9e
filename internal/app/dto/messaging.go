package dto

import (
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

// PreviewRunes bounds last-message previews in the inbox.
const PreviewRunes = 200

// UserSummary is the public profile shown next to messages.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation describes conversation metadata.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Created      bool      `json:"created"`
}

// LastMessage is the inbox preview of the newest message.
type LastMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id,omitempty"`
	Preview   string    `json:"preview"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// InboxItem is one row of the conversation list.
type InboxItem struct {
	ID          string        `json:"id"`
	Others      []UserSummary `json:"others"`
	LastMessage *LastMessage  `json:"last_message,omitempty"`
	UnreadCount int           `json:"unread_count"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Inbox struct {
	Items       []InboxItem `json:"items"`
	TotalUnread int         `json:"total_unread"`
}

type UnreadSummary struct {
	TotalUnread   int            `json:"total_unread"`
	Conversations map[string]int `json:"conversations"`
}

// Reaction groups one emoji; Usernames follows the order of UserIDs.
type Reaction struct {
	Emoji     string   `json:"emoji"`
	Count     int      `json:"count"`
	UserIDs   []string `json:"user_ids"`
	Usernames []string `json:"usernames"`
}

// Message is the wire form of a message. Content is empty once deleted.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id,omitempty"`
	Sender         *UserSummary `json:"sender,omitempty"`
	Content        string       `json:"content"`
	IsEdited       bool         `json:"is_edited"`
	IsDeleted      bool         `json:"is_deleted"`
	IsMine         bool         `json:"is_mine"`
	Reactions      []Reaction   `json:"reactions"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type MessageList struct {
	Items      []Message `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type SearchHit struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}

type SearchResults struct {
	Items []SearchHit `json:"items"`
}

type ReactionToggle struct {
	MessageID string     `json:"message_id"`
	Emoji     string     `json:"emoji"`
	Added     bool       `json:"added"`
	Reactions []Reaction `json:"reactions"`
}

type ClearResult struct {
	ConversationID string `json:"conversation_id"`
	Deleted        int    `json:"deleted"`
}

type ReadReceipt struct {
	ConversationID string    `json:"conversation_id"`
	ReadAt         time.Time `json:"read_at"`
}

// MapConversation renders a conversation and its participants.
func MapConversation(conv *messaging.Conversation, participants []messaging.Participant, created bool) Conversation {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, string(p.UserID))
	}
	return Conversation{
		ID:           string(conv.ID),
		Participants: ids,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Created:      created,
	}
}

// MapMessage renders m as seen by viewer; profiles may be nil. Deleted
// messages carry no reactions.
func MapMessage(m *messaging.Message, viewer messaging.UserID, reactions []messaging.Reaction, profiles map[string]profile.Profile) Message {
	content, _ := m.Content()
	if m.IsDeleted() {
		reactions = nil
	}
	out := Message{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Content:        content,
		IsEdited:       m.Edited,
		IsDeleted:      m.IsDeleted(),
		IsMine:         viewer != "" && m.SenderID == viewer,
		Reactions:      MapReactions(messaging.GroupReactions(reactions), profiles),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.SenderID != "" && profiles != nil {
		summary := MapUser(lookup(profiles, string(m.SenderID)))
		out.Sender = &summary
	}
	return out
}

// MapReactions renders groups with reactor usernames; profiles may be nil.
func MapReactions(groups []messaging.ReactionGroup, profiles map[string]profile.Profile) []Reaction {
	out := make([]Reaction, 0, len(groups))
	for _, g := range groups {
		ids := make([]string, 0, len(g.UserIDs))
		names := make([]string, 0, len(g.UserIDs))
		for _, id := range g.UserIDs {
			ids = append(ids, string(id))
			names = append(names, lookup(profiles, string(id)).DisplayName())
		}
		out = append(out, Reaction{Emoji: g.Emoji, Count: g.Count, UserIDs: ids, Usernames: names})
	}
	return out
}

func MapUser(p profile.Profile) UserSummary {
	return UserSummary{ID: p.UserID, Username: p.DisplayName(), AvatarURL: p.AvatarURL}
}

// MapInboxItem renders an inbox row.
func MapInboxItem(entry messaging.InboxEntry, profiles map[string]profile.Profile) InboxItem {
	item := InboxItem{
		ID:          string(entry.Conversation.ID),
		Others:      make([]UserSummary, 0, len(entry.Others)),
		UnreadCount: entry.Unread,
		UpdatedAt:   entry.Conversation.UpdatedAt,
	}
	for _, id := range entry.Others {
		item.Others = append(item.Others, MapUser(lookup(profiles, string(id))))
	}
	if m := entry.LastMessage; m != nil {
		item.LastMessage = &LastMessage{
			ID:        string(m.ID),
			SenderID:  string(m.SenderID),
			Preview:   m.Preview(PreviewRunes),
			IsDeleted: m.IsDeleted(),
			CreatedAt: m.CreatedAt,
		}
	}
	return item
}

func lookup(profiles map[string]profile.Profile, id string) profile.Profile {
	if p, ok := profiles[id]; ok {
		return p
	}
	return profile.Placeholder(id)
}
