package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
)

// Logging records command outcome and latency.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			if actor := commands.ActorOf(cmd); actor != "" {
				attrs = append(attrs, "user_id", actor)
			}
			if err != nil {
				logger.WarnContext(ctx, "command failed", append(attrs, "err", err)...)
				return nil, err
			}
			logger.DebugContext(ctx, "command handled", attrs...)
			return res, nil
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			if err != nil {
				logger.DebugContext(ctx, "query failed", "query", q.Key(), "user_id", queries.ViewerOf(q), "duration", time.Since(start), "err", err)
				return nil, err
			}
			return res, nil
		})
	}
}
