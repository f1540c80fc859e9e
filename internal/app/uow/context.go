package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Scope is a unit of work obtained for one handler invocation. When the
// unit came from context (the Transaction middleware owns it), Commit and
// Done are no-ops.
type Scope struct {
	Unit      UnitOfWork
	Ctx       context.Context
	managed   bool
	committed bool
}

// Enter reuses the context unit of work or begins a new one.
func Enter(ctx context.Context, factory UoWFactory, opts TxOptions) (*Scope, error) {
	if unit, ok := FromContext(ctx); ok {
		return &Scope{Unit: unit, Ctx: ctx}, nil
	}
	if factory == nil {
		return nil, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	return &Scope{Unit: unit, Ctx: execCtx, managed: true}, nil
}

// Commit commits a unit this scope began.
func (s *Scope) Commit() error {
	if !s.managed || s.committed {
		return nil
	}
	if err := s.Unit.Commit(s.Ctx); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Done rolls back a unit this scope began and did not commit. Meant for defer.
func (s *Scope) Done() {
	if s.managed && !s.committed {
		_ = s.Unit.Rollback(s.Ctx)
	}
}
