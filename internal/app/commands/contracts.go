package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Command is a messaging write routed through the bus. Key names the handler.
type Command interface {
	Key() string
}

// Acting is implemented by commands issued on behalf of a user.
type Acting interface {
	Command
	Actor() string
}

// Handler runs one command kind.
type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// Bus dispatches commands through the middleware chain.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("commands: handler not found")
	ErrInvalidCommand  = errors.New("commands: invalid command for handler")
	ErrResultType      = errors.New("commands: result type mismatch")
	ErrNilBus          = errors.New("commands: nil bus")
)

// ActorOf returns the trimmed acting user of cmd, or "" for system commands.
func ActorOf(cmd Command) string {
	if a, ok := cmd.(Acting); ok {
		return strings.TrimSpace(a.Actor())
	}
	return ""
}

// Dispatch sends cmd through bus and asserts the handler's result type.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), res)
	}
	return value, nil
}
