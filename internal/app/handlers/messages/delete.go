package messages

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/support"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

const deleteKey = "messages.delete"

// DeleteCommand soft-deletes a message the actor sent. Deleting twice succeeds.
type DeleteCommand struct {
	ActorID   string
	MessageID string `validate:"required"`
	Now       time.Time
}

func (c DeleteCommand) Key() string { return deleteKey }

func (c DeleteCommand) Actor() string { return c.ActorID }

type DeleteHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Logger     *slog.Logger
}

func (h *DeleteHandler) Handle(ctx context.Context, cmd DeleteCommand) (dto.Message, error) {
	actor, err := support.Actor(cmd.ActorID)
	if err != nil {
		return dto.Message{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Message{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	msg, err := scope.Unit.Messages().OwnedBy(ctx, messaging.MessageID(strings.TrimSpace(cmd.MessageID)), actor)
	if err != nil {
		return dto.Message{}, err
	}
	live, ok := msg.Live()
	if !ok {
		if err := scope.Commit(); err != nil {
			return dto.Message{}, err
		}
		return dto.MapMessage(msg, actor, nil, nil), nil
	}
	live.Delete(support.Now(cmd.Now))
	if err := scope.Unit.Messages().SaveDelete(ctx, msg); err != nil {
		return dto.Message{}, err
	}
	participants, err := scope.Unit.Conversations().Participants(ctx, msg.ConversationID)
	if err != nil {
		return dto.Message{}, err
	}
	if err := h.Publisher.Publish(ctx, participants, msg.PullEvents()...); err != nil {
		return dto.Message{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.Message{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("message deleted", "conversation_id", msg.ConversationID, "message_id", msg.ID, "sender_id", actor)
	}
	return dto.MapMessage(msg, actor, nil, nil), nil
}

var _ commands.Handler[DeleteCommand, dto.Message] = (*DeleteHandler)(nil)
