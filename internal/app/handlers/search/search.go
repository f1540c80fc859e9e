package search

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

const (
	searchKey = "messages.search"

	DefaultLimit = 20
	MaxLimit     = 100
)

// Query runs a full-text lookup over the viewer's conversations.
type Query struct {
	ViewerID       string
	Text           string `validate:"max=256"`
	ConversationID string
	Limit          int `validate:"gte=0"`
}

func (q Query) Key() string { return searchKey }

func (q Query) Viewer() string { return q.ViewerID }

type Handler struct {
	UoWFactory   uow.UoWFactory
	Profiles     profile.Directory
	DefaultLimit int
	Logger       *slog.Logger
}

func (h *Handler) Handle(ctx context.Context, q Query) (dto.SearchResults, error) {
	viewer, err := support.Actor(q.ViewerID)
	if err != nil {
		return dto.SearchResults{}, err
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return dto.SearchResults{}, messaging.ErrEmptyQuery
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.SearchResults{}, err
	}
	defer scope.Done()
	ctx = scope.Ctx

	convID := messaging.ConversationID(strings.TrimSpace(q.ConversationID))
	if convID != "" {
		if _, _, err := support.Membership(ctx, scope.Unit, convID, viewer); err != nil {
			return dto.SearchResults{}, err
		}
	}
	hits, err := scope.Unit.Messages().Search(ctx, messaging.SearchParams{
		Viewer:         viewer,
		Query:          text,
		ConversationID: convID,
		Limit:          h.limit(q.Limit),
	})
	if err != nil {
		return dto.SearchResults{}, err
	}

	senders := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Message.SenderID != "" {
			senders = append(senders, string(hit.Message.SenderID))
		}
	}
	profiles, err := support.Profiles(ctx, h.Profiles, senders)
	if err != nil && h.Logger != nil {
		h.Logger.Warn("profile lookup failed", "user_id", viewer, "error", err)
	}
	out := dto.SearchResults{Items: make([]dto.SearchHit, 0, len(hits))}
	for _, hit := range hits {
		out.Items = append(out.Items, dto.SearchHit{
			Message: dto.MapMessage(hit.Message, viewer, nil, profiles),
			Snippet: hit.Snippet,
			Rank:    hit.Rank,
		})
	}
	return out, nil
}

func (h *Handler) limit(requested int) int {
	def := h.DefaultLimit
	if def <= 0 || def > MaxLimit {
		def = DefaultLimit
	}
	if requested <= 0 {
		return def
	}
	if requested > MaxLimit {
		return MaxLimit
	}
	return requested
}

var _ queries.Handler[Query, dto.SearchResults] = (*Handler)(nil)
