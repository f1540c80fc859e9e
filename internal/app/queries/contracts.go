package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Query is a messaging read. Reads never enter the outbox.
type Query interface {
	Key() string
}

// Viewing is implemented by queries answered for a specific user.
type Viewing interface {
	Query
	Viewer() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// Bus routes queries to registered handlers.
type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("queries: handler not found")
	ErrInvalidQuery    = errors.New("queries: invalid query for handler")
	ErrResultType      = errors.New("queries: result type mismatch")
	ErrNilBus          = errors.New("queries: nil bus")
)

// ViewerOf returns the trimmed viewer of q, or "".
func ViewerOf(q Query) string {
	if v, ok := q.(Viewing); ok {
		return strings.TrimSpace(v.Viewer())
	}
	return ""
}

// Ask runs query through bus and asserts the handler's result type.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, query.Key(), res)
	}
	return value, nil
}
