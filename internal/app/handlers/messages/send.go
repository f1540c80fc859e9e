package messages

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/support"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

const sendKey = "messages.send"

// SendCommand appends a message to a conversation on behalf of the actor.
type SendCommand struct {
	ActorID        string
	ConversationID string `validate:"required"`
	Content        string
	// ClientKey is the optional Idempotency-Key supplied by the client.
	ClientKey string `validate:"max=128"`
	Now       time.Time
}

func (c SendCommand) Key() string { return sendKey }

func (c SendCommand) Actor() string { return c.ActorID }

func (c SendCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.ClientKey)
	if key == "" || strings.TrimSpace(c.ActorID) == "" {
		return ""
	}
	return sendKey + ":" + strings.TrimSpace(c.ActorID) + ":" + key
}

func (c SendCommand) ResultPrototype() any { return &dto.Message{} }

func (c SendCommand) RateKey() string {
	if strings.TrimSpace(c.ActorID) == "" {
		return ""
	}
	return "send:" + strings.TrimSpace(c.ActorID)
}

type SendHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Logger     *slog.Logger
	NewID      func() string
}

func (h *SendHandler) Handle(ctx context.Context, cmd SendCommand) (dto.Message, error) {
	actor, err := support.Actor(cmd.ActorID)
	if err != nil {
		return dto.Message{}, err
	}
	convID := messaging.ConversationID(strings.TrimSpace(cmd.ConversationID))
	msg, err := messaging.NewMessage(messaging.NewMessageParams{
		ID:             messaging.MessageID(h.newID()),
		ConversationID: convID,
		SenderID:       actor,
		Content:        cmd.Content,
		CreatedAt:      support.Now(cmd.Now),
	})
	if err != nil {
		return dto.Message{}, err
	}

	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Message{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	conv, participants, err := support.Membership(ctx, scope.Unit, convID, actor)
	if err != nil {
		return dto.Message{}, err
	}
	if err := scope.Unit.Messages().Append(ctx, msg); err != nil {
		return dto.Message{}, err
	}
	conv.Touch(msg.CreatedAt)
	if err := scope.Unit.Conversations().Touch(ctx, conv.ID, conv.UpdatedAt); err != nil {
		return dto.Message{}, err
	}
	// the sender has seen everything up to their own message
	if err := scope.Unit.Conversations().AdvanceWatermark(ctx, conv.ID, actor, msg.CreatedAt); err != nil {
		return dto.Message{}, err
	}
	if err := h.Publisher.Publish(ctx, participants, msg.PullEvents()...); err != nil {
		return dto.Message{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.Message{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("message sent", "conversation_id", conv.ID, "message_id", msg.ID, "sender_id", actor)
	}
	return dto.MapMessage(msg, actor, nil, nil), nil
}

func (h *SendHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var _ commands.Handler[SendCommand, dto.Message] = (*SendHandler)(nil)
