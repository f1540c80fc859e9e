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
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

const editKey = "messages.edit"

// EditCommand replaces the content of a message the actor sent.
type EditCommand struct {
	ActorID   string
	MessageID string `validate:"required"`
	Content   string
	Now       time.Time
}

func (c EditCommand) Key() string { return editKey }

func (c EditCommand) Actor() string { return c.ActorID }

type EditHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Profiles   profile.Directory
	Logger     *slog.Logger
}

func (h *EditHandler) Handle(ctx context.Context, cmd EditCommand) (dto.Message, error) {
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
		return dto.Message{}, messaging.ErrMessageDeleted
	}
	if err := live.Edit(cmd.Content, support.Now(cmd.Now)); err != nil {
		return dto.Message{}, err
	}
	if err := scope.Unit.Messages().SaveEdit(ctx, msg); err != nil {
		return dto.Message{}, err
	}
	participants, err := scope.Unit.Conversations().Participants(ctx, msg.ConversationID)
	if err != nil {
		return dto.Message{}, err
	}
	reactions, err := scope.Unit.Reactions().ForMessages(ctx, []messaging.MessageID{msg.ID})
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
		h.Logger.Info("message edited", "conversation_id", msg.ConversationID, "message_id", msg.ID, "sender_id", actor)
	}
	profiles, err := support.Profiles(ctx, h.Profiles, append([]string{string(actor)}, messaging.Reactors(reactions)...))
	if err != nil && h.Logger != nil {
		h.Logger.Warn("profile lookup failed", "message_id", msg.ID, "error", err)
	}
	return dto.MapMessage(msg, actor, reactions, profiles), nil
}

var _ commands.Handler[EditCommand, dto.Message] = (*EditHandler)(nil)
