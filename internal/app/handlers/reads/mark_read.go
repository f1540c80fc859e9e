package reads

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

const markReadKey = "reads.mark"

// MarkReadCommand advances the actor's own read watermark to Now.
type MarkReadCommand struct {
	ActorID        string
	ConversationID string `validate:"required"`
	Now            time.Time
}

func (c MarkReadCommand) Key() string { return markReadKey }

func (c MarkReadCommand) Actor() string { return c.ActorID }

type MarkReadHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Logger     *slog.Logger
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (dto.ReadReceipt, error) {
	actor, err := support.Actor(cmd.ActorID)
	if err != nil {
		return dto.ReadReceipt{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.ReadReceipt{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	convID := messaging.ConversationID(strings.TrimSpace(cmd.ConversationID))
	conv, participants, err := support.Membership(ctx, scope.Unit, convID, actor)
	if err != nil {
		return dto.ReadReceipt{}, err
	}
	self, _ := messaging.Find(participants, actor)
	if self.Advance(support.Now(cmd.Now)) {
		if err := scope.Unit.Conversations().AdvanceWatermark(ctx, conv.ID, actor, self.LastReadAt); err != nil {
			return dto.ReadReceipt{}, err
		}
		read := messaging.ConversationRead{ConversationID: conv.ID, UserID: actor, At: self.LastReadAt}
		if err := h.Publisher.Publish(ctx, participants, read); err != nil {
			return dto.ReadReceipt{}, err
		}
	}
	if err := scope.Commit(); err != nil {
		return dto.ReadReceipt{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("conversation read", "conversation_id", conv.ID, "user_id", actor, "read_at", self.LastReadAt)
	}
	return dto.ReadReceipt{ConversationID: string(conv.ID), ReadAt: self.LastReadAt}, nil
}

var _ commands.Handler[MarkReadCommand, dto.ReadReceipt] = (*MarkReadHandler)(nil)
