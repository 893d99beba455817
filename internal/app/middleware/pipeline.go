package middleware

import (
	"context"

	"donateo/internal/app/commands"
	"donateo/internal/app/queries"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands wraps base so that mws[0] sees a command first.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	bus := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			bus = mws[i](bus)
		}
	}
	return bus
}

// ChainQueries wraps base so that mws[0] sees a query first.
func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	bus := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			bus = mws[i](bus)
		}
	}
	return bus
}

type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

func wrapCommand(next commands.Bus) commandFunc {
	return next.Dispatch
}

type queryFunc func(ctx context.Context, query queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

func wrapQuery(next queries.Bus) queryFunc {
	return next.Ask
}
