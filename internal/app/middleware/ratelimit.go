package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitedCommand names the quota bucket a command draws from.
type RateLimitedCommand interface {
	commands.Command
	RateKey() string
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects commands whose bucket is exhausted. Limiter failures are
// logged and let the command through.
func RateLimit(limiter Limiter, logger *slog.Logger) CommandMiddleware {
	if limiter == nil {
		panic("middleware: limiter required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			limited, ok := cmd.(RateLimitedCommand)
			if !ok || limited.RateKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			allowed, err := limiter.Allow(ctx, limited.RateKey())
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "rate limiter unavailable", "command", cmd.Key(), "err", err)
				}
				return next.Dispatch(ctx, cmd)
			}
			if !allowed {
				return nil, ErrRateLimited
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}
