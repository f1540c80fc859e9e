package uow

import (
	"context"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

// UnitOfWork coordinates messaging repositories inside a transaction boundary.
type UnitOfWork interface {
	Conversations() messaging.ConversationRepository
	Messages() messaging.MessageRepository
	Reactions() messaging.ReactionRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
