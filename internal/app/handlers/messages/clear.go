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

const clearKey = "messages.clear"

// ClearCommand soft-deletes every message of a conversation, whoever sent it.
// Read watermarks are left untouched.
type ClearCommand struct {
	ActorID        string
	ConversationID string `validate:"required"`
	Now            time.Time
}

func (c ClearCommand) Key() string { return clearKey }

func (c ClearCommand) Actor() string { return c.ActorID }

type ClearHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Logger     *slog.Logger
}

func (h *ClearHandler) Handle(ctx context.Context, cmd ClearCommand) (dto.ClearResult, error) {
	actor, err := support.Actor(cmd.ActorID)
	if err != nil {
		return dto.ClearResult{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.ClearResult{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	convID := messaging.ConversationID(strings.TrimSpace(cmd.ConversationID))
	conv, participants, err := support.Membership(ctx, scope.Unit, convID, actor)
	if err != nil {
		return dto.ClearResult{}, err
	}
	now := support.Now(cmd.Now)
	count, err := scope.Unit.Messages().Clear(ctx, conv.ID, now)
	if err != nil {
		return dto.ClearResult{}, err
	}
	if count > 0 {
		cleared := messaging.ConversationCleared{ConversationID: conv.ID, ActorID: actor, Count: count, At: now}
		if err := h.Publisher.Publish(ctx, participants, cleared); err != nil {
			return dto.ClearResult{}, err
		}
	}
	if err := scope.Commit(); err != nil {
		return dto.ClearResult{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("conversation cleared", "conversation_id", conv.ID, "user_id", actor, "deleted", count)
	}
	return dto.ClearResult{ConversationID: string(conv.ID), Deleted: count}, nil
}

var _ commands.Handler[ClearCommand, dto.ClearResult] = (*ClearHandler)(nil)
