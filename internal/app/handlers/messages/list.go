package messages

import (
	"context"
	"log/slog"
	"strings"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/support"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

const listKey = "messages.list"

// ListQuery pages through a conversation log, newest first.
type ListQuery struct {
	ViewerID       string
	ConversationID string `validate:"required"`
	Limit          int    `validate:"gte=0,lte=200"`
	Cursor         string
}

func (q ListQuery) Key() string { return listKey }

func (q ListQuery) Viewer() string { return q.ViewerID }

// FirstPage reports whether the query opens the conversation rather than
// scrolling back through it.
func (q ListQuery) FirstPage() bool {
	return strings.TrimSpace(q.Cursor) == ""
}

type ListHandler struct {
	UoWFactory uow.UoWFactory
	Profiles   profile.Directory
	Logger     *slog.Logger
}

func (h *ListHandler) Handle(ctx context.Context, q ListQuery) (dto.MessageList, error) {
	viewer, err := support.Actor(q.ViewerID)
	if err != nil {
		return dto.MessageList{}, err
	}
	cursor, err := messaging.ParseCursor(q.Cursor)
	if err != nil {
		return dto.MessageList{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.MessageList{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	convID := messaging.ConversationID(strings.TrimSpace(q.ConversationID))
	if _, _, err := support.Membership(ctx, scope.Unit, convID, viewer); err != nil {
		return dto.MessageList{}, err
	}
	page := messaging.Page{Limit: q.Limit, Before: cursor}.Normalized()
	msgs, err := scope.Unit.Messages().List(ctx, convID, page)
	if err != nil {
		return dto.MessageList{}, err
	}

	ids := make([]messaging.MessageID, 0, len(msgs))
	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if m.SenderID != "" {
			senders = append(senders, string(m.SenderID))
		}
	}
	reactions, err := scope.Unit.Reactions().ForMessages(ctx, ids)
	if err != nil {
		return dto.MessageList{}, err
	}
	byMessage := messaging.ByMessage(reactions)
	profiles, err := support.Profiles(ctx, h.Profiles, append(senders, messaging.Reactors(reactions)...))
	if err != nil && h.Logger != nil {
		h.Logger.Warn("profile lookup failed", "conversation_id", convID, "error", err)
	}

	out := dto.MessageList{Items: make([]dto.Message, 0, len(msgs))}
	for _, m := range msgs {
		out.Items = append(out.Items, dto.MapMessage(m, viewer, byMessage[m.ID], profiles))
	}
	if len(msgs) == page.Limit {
		out.NextCursor = messaging.CursorFor(msgs[len(msgs)-1]).String()
	}
	return out, nil
}

var _ queries.Handler[ListQuery, dto.MessageList] = (*ListHandler)(nil)
