package conversations

import (
	"context"
	"log/slog"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/dto"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/support"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

const (
	listInboxKey     = "conversations.inbox"
	unreadSummaryKey = "conversations.unread_summary"
)

// ListInboxQuery assembles the viewer's conversation list, most recent activity first.
type ListInboxQuery struct {
	ViewerID string
}

func (q ListInboxQuery) Key() string { return listInboxKey }

func (q ListInboxQuery) Viewer() string { return q.ViewerID }

type ListInboxHandler struct {
	UoWFactory uow.UoWFactory
	Profiles   profile.Directory
	Logger     *slog.Logger
}

func (h *ListInboxHandler) Handle(ctx context.Context, q ListInboxQuery) (dto.Inbox, error) {
	viewer, err := support.Actor(q.ViewerID)
	if err != nil {
		return dto.Inbox{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Inbox{}, err
	}
	defer scope.Done()

	entries, err := scope.Unit.Conversations().Inbox(scope.Ctx, viewer)
	if err != nil {
		return dto.Inbox{}, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		for _, other := range e.Others {
			ids = append(ids, string(other))
		}
	}
	profiles, err := support.Profiles(ctx, h.Profiles, ids)
	if err != nil && h.Logger != nil {
		h.Logger.Warn("profile lookup failed", "user_id", viewer, "error", err)
	}

	out := dto.Inbox{Items: make([]dto.InboxItem, 0, len(entries))}
	for _, e := range entries {
		item := dto.MapInboxItem(e, profiles)
		out.TotalUnread += item.UnreadCount
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// UnreadSummaryQuery returns per-conversation and total unread counts.
type UnreadSummaryQuery struct {
	ViewerID string
}

func (q UnreadSummaryQuery) Key() string { return unreadSummaryKey }

func (q UnreadSummaryQuery) Viewer() string { return q.ViewerID }

type UnreadSummaryHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *UnreadSummaryHandler) Handle(ctx context.Context, q UnreadSummaryQuery) (dto.UnreadSummary, error) {
	viewer, err := support.Actor(q.ViewerID)
	if err != nil {
		return dto.UnreadSummary{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.UnreadSummary{}, err
	}
	defer scope.Done()

	entries, err := scope.Unit.Conversations().Inbox(scope.Ctx, viewer)
	if err != nil {
		return dto.UnreadSummary{}, err
	}
	out := dto.UnreadSummary{Conversations: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Unread == 0 {
			continue
		}
		out.Conversations[string(e.Conversation.ID)] = e.Unread
		out.TotalUnread += e.Unread
	}
	return out, nil
}

var (
	_ queries.Handler[ListInboxQuery, dto.Inbox]             = (*ListInboxHandler)(nil)
	_ queries.Handler[UnreadSummaryQuery, dto.UnreadSummary] = (*UnreadSummaryHandler)(nil)
)
