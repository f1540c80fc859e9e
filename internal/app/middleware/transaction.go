package middleware

import (
	"context"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command inside one unit of work and commits on success.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			if _, ok := uow.FromContext(ctx); ok {
				return next.Dispatch(ctx, cmd)
			}
			scope, err := uow.Enter(ctx, factory, opts)
			if err != nil {
				return nil, err
			}
			defer scope.Done()

			res, err := next.Dispatch(scope.Ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := scope.Commit(); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
