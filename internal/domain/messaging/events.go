package messaging

import "time"

type ConversationCreated struct {
	ConversationID ConversationID
	Participants   []UserID
	At             time.Time
}

func (e ConversationCreated) EventName() string     { return "conversation.created" }
func (e ConversationCreated) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationCreated) OccurredAt() time.Time { return e.At }

type ConversationCleared struct {
	ConversationID ConversationID
	ActorID        UserID
	Count          int
	At             time.Time
}

func (e ConversationCleared) EventName() string     { return "conversation.cleared" }
func (e ConversationCleared) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationCleared) OccurredAt() time.Time { return e.At }

type ConversationRead struct {
	ConversationID ConversationID
	UserID         UserID
	At             time.Time
}

func (e ConversationRead) EventName() string     { return "conversation.read" }
func (e ConversationRead) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationRead) OccurredAt() time.Time { return e.At }

type MessageSent struct {
	MessageID      MessageID
	ConversationID ConversationID
	SenderID       UserID
	At             time.Time
}

func (e MessageSent) EventName() string     { return "message.sent" }
func (e MessageSent) AggregateID() string   { return string(e.ConversationID) }
func (e MessageSent) OccurredAt() time.Time { return e.At }

type MessageEdited struct {
	MessageID      MessageID
	ConversationID ConversationID
	At             time.Time
}

func (e MessageEdited) EventName() string     { return "message.edited" }
func (e MessageEdited) AggregateID() string   { return string(e.ConversationID) }
func (e MessageEdited) OccurredAt() time.Time { return e.At }

type MessageDeleted struct {
	MessageID      MessageID
	ConversationID ConversationID
	At             time.Time
}

func (e MessageDeleted) EventName() string     { return "message.deleted" }
func (e MessageDeleted) AggregateID() string   { return string(e.ConversationID) }
func (e MessageDeleted) OccurredAt() time.Time { return e.At }

type ReactionToggled struct {
	MessageID      MessageID
	ConversationID ConversationID
	UserID         UserID
	Emoji          string
	Added          bool
	At             time.Time
}

func (e ReactionToggled) EventName() string     { return "reaction.toggled" }
func (e ReactionToggled) AggregateID() string   { return string(e.ConversationID) }
func (e ReactionToggled) OccurredAt() time.Time { return e.At }
