package memory

import (
	"context"
	"errors"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

// Factory hands out units of work over a shared Store.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight boundary. Writes apply immediately; there is no
// isolation or rollback.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{store: f.Store}, nil
}

type Unit struct {
	store *Store
}

func (u *Unit) Conversations() messaging.ConversationRepository {
	return ConversationRepository{store: u.store}
}

func (u *Unit) Messages() messaging.MessageRepository {
	return MessageRepository{store: u.store}
}

func (u *Unit) Reactions() messaging.ReactionRepository {
	return ReactionRepository{store: u.store}
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
