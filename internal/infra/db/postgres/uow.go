package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

// Factory wires gorm transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *gorm.DB
}

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx}, nil
}

type Unit struct {
	tx *gorm.DB
}

func (u *Unit) Conversations() messaging.ConversationRepository {
	return ConversationRepository{db: u.tx}
}

func (u *Unit) Messages() messaging.MessageRepository {
	return MessageRepository{db: u.tx}
}

func (u *Unit) Reactions() messaging.ReactionRepository {
	return ReactionRepository{db: u.tx}
}

func (u *Unit) Commit(ctx context.Context) error {
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

var _ uow.UoWFactory = Factory{}
