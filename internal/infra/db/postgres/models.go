package postgres

import (
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

type conversationRow struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	PairKey   *string   `gorm:"uniqueIndex:conversations_pair_key_key"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (conversationRow) TableName() string { return "conversations" }

type participantRow struct {
	ConversationID string    `gorm:"type:uuid;primaryKey"`
	UserID         string    `gorm:"primaryKey;index:conversation_participants_user_idx"`
	JoinedAt       time.Time `gorm:"not null"`
	LastReadAt     time.Time `gorm:"not null"`
}

func (participantRow) TableName() string { return "conversation_participants" }

type messageRow struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	ConversationID string `gorm:"type:uuid;not null"`
	SenderID       *string
	Content        *string
	IsEdited       bool      `gorm:"not null;default:false"`
	IsDeleted      bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (messageRow) TableName() string { return "messages" }

type reactionRow struct {
	MessageID string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"primaryKey"`
	Reaction  string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

func (reactionRow) TableName() string { return "message_reactions" }

func toConversationRow(c *messaging.Conversation) conversationRow {
	row := conversationRow{ID: string(c.ID), CreatedAt: c.CreatedAt.UTC(), UpdatedAt: c.UpdatedAt.UTC()}
	if c.PairKey != "" {
		key := c.PairKey
		row.PairKey = &key
	}
	return row
}

func (r conversationRow) toDomain() *messaging.Conversation {
	c := &messaging.Conversation{ID: messaging.ConversationID(r.ID), CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()}
	if r.PairKey != nil {
		c.PairKey = *r.PairKey
	}
	return c
}

func (r participantRow) toDomain() messaging.Participant {
	return messaging.Participant{
		ConversationID: messaging.ConversationID(r.ConversationID),
		UserID:         messaging.UserID(r.UserID),
		JoinedAt:       r.JoinedAt.UTC(),
		LastReadAt:     r.LastReadAt.UTC(),
	}
}

func toMessageRow(m *messaging.Message) messageRow {
	row := messageRow{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		IsEdited:       m.Edited,
		IsDeleted:      m.IsDeleted(),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.SenderID != "" {
		sender := string(m.SenderID)
		row.SenderID = &sender
	}
	if content, ok := m.Content(); ok {
		row.Content = &content
	}
	return row
}

func (r messageRow) toDomain() *messaging.Message {
	var sender messaging.UserID
	if r.SenderID != nil {
		sender = messaging.UserID(*r.SenderID)
	}
	return messaging.RestoreMessage(messaging.RestoreParams{
		ID:             messaging.MessageID(r.ID),
		ConversationID: messaging.ConversationID(r.ConversationID),
		SenderID:       sender,
		Content:        r.Content,
		Edited:         r.IsEdited,
		Deleted:        r.IsDeleted,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	})
}

func (r reactionRow) toDomain() messaging.Reaction {
	return messaging.Reaction{
		MessageID: messaging.MessageID(r.MessageID),
		UserID:    messaging.UserID(r.UserID),
		Emoji:     r.Reaction,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
