package reactions

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

const toggleKey = "reactions.toggle"

// ToggleCommand flips the actor's emoji reaction on a message.
type ToggleCommand struct {
	ActorID   string
	MessageID string `validate:"required"`
	Emoji     string
	Now       time.Time
}

func (c ToggleCommand) Key() string { return toggleKey }

func (c ToggleCommand) Actor() string { return c.ActorID }

func (c ToggleCommand) RateKey() string {
	if strings.TrimSpace(c.ActorID) == "" {
		return ""
	}
	return "react:" + strings.TrimSpace(c.ActorID)
}

type ToggleHandler struct {
	UoWFactory uow.UoWFactory
	Publisher  support.Publisher
	Profiles   profile.Directory
	Logger     *slog.Logger
}

func (h *ToggleHandler) Handle(ctx context.Context, cmd ToggleCommand) (dto.ReactionToggle, error) {
	actor, err := support.Actor(cmd.ActorID)
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	emoji, err := messaging.NormalizeEmoji(cmd.Emoji)
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	msg, err := scope.Unit.Messages().ByID(ctx, messaging.MessageID(strings.TrimSpace(cmd.MessageID)))
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	_, participants, err := support.Membership(ctx, scope.Unit, msg.ConversationID, actor)
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	now := support.Now(cmd.Now)
	added, err := scope.Unit.Reactions().Toggle(ctx, messaging.Reaction{
		MessageID: msg.ID,
		UserID:    actor,
		Emoji:     emoji,
		CreatedAt: now,
	})
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	current, err := scope.Unit.Reactions().ForMessages(ctx, []messaging.MessageID{msg.ID})
	if err != nil {
		return dto.ReactionToggle{}, err
	}
	toggled := messaging.ReactionToggled{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         actor,
		Emoji:          emoji,
		Added:          added,
		At:             now,
	}
	if err := h.Publisher.Publish(ctx, participants, toggled); err != nil {
		return dto.ReactionToggle{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.ReactionToggle{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("reaction toggled", "message_id", msg.ID, "user_id", actor, "emoji", emoji, "added", added)
	}
	profiles, err := support.Profiles(ctx, h.Profiles, messaging.Reactors(current))
	if err != nil && h.Logger != nil {
		h.Logger.Warn("profile lookup failed", "message_id", msg.ID, "error", err)
	}
	return dto.ReactionToggle{
		MessageID: string(msg.ID),
		Emoji:     emoji,
		Added:     added,
		Reactions: dto.MapReactions(messaging.GroupReactions(current), profiles),
	}, nil
}

var _ commands.Handler[ToggleCommand, dto.ReactionToggle] = (*ToggleHandler)(nil)
