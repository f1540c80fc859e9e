package conversations

import (
	"context"
	"errors"
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

const getOrCreateKey = "conversations.get_or_create"

// GetOrCreateCommand resolves the direct conversation between the actor and a peer.
type GetOrCreateCommand struct {
	ActorID string
	PeerID  string
	Now     time.Time
}

func (c GetOrCreateCommand) Key() string { return getOrCreateKey }

func (c GetOrCreateCommand) Actor() string { return c.ActorID }

type GetOrCreateHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Logger     *slog.Logger
	NewID      func() string
}

func (h *GetOrCreateHandler) Handle(ctx context.Context, cmd GetOrCreateCommand) (dto.Conversation, error) {
	actor, err := support.Actor(cmd.ActorID)
	if err != nil {
		return dto.Conversation{}, err
	}
	peer := messaging.UserID(strings.TrimSpace(cmd.PeerID))
	if peer == "" {
		return dto.Conversation{}, messaging.ErrMissingPeer
	}
	if peer == actor {
		return dto.Conversation{}, messaging.ErrSelfConversation
	}

	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Conversation{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx
	repo := scope.Unit.Conversations()

	existing, err := repo.FindShared(ctx, actor, peer)
	switch {
	case err == nil:
		return h.resolved(ctx, scope, existing, false)
	case !errors.Is(err, messaging.ErrNotFound):
		return dto.Conversation{}, err
	}

	conv, participants, err := messaging.NewDirectConversation(messaging.NewDirectParams{
		ID:        messaging.ConversationID(h.newID()),
		Self:      actor,
		Other:     peer,
		CreatedAt: support.Now(cmd.Now),
	})
	if err != nil {
		return dto.Conversation{}, err
	}
	if err := repo.CreateDirect(ctx, conv, participants); err != nil {
		if !errors.Is(err, messaging.ErrConversationTaken) {
			return dto.Conversation{}, err
		}
		// lost the race for this pair; the winner's row is authoritative
		existing, err = repo.FindShared(ctx, actor, peer)
		if err != nil {
			return dto.Conversation{}, err
		}
		return h.resolved(ctx, scope, existing, false)
	}
	if err := h.Publisher.Publish(ctx, participants, conv.PullEvents()...); err != nil {
		return dto.Conversation{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.Conversation{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("conversation created", "conversation_id", conv.ID, "user_id", actor, "peer_id", peer)
	}
	return dto.MapConversation(conv, participants, true), nil
}

func (h *GetOrCreateHandler) resolved(ctx context.Context, scope *uow.Scope, conv *messaging.Conversation, created bool) (dto.Conversation, error) {
	participants, err := scope.Unit.Conversations().Participants(ctx, conv.ID)
	if err != nil {
		return dto.Conversation{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.Conversation{}, err
	}
	return dto.MapConversation(conv, participants, created), nil
}

func (h *GetOrCreateHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var _ commands.Handler[GetOrCreateCommand, dto.Conversation] = (*GetOrCreateHandler)(nil)
