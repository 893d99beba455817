package middleware

import (
	"context"
	"log/slog"
	"time"

	"donateo/internal/app/commands"
)

// Logging records every dispatched command with its outcome and duration.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		if logger == nil {
			return nextFn
		}
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			result, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			if scoped, ok := cmd.(ActorScoped); ok {
				attrs = append(attrs, "actor_id", scoped.Actor())
			}
			if err != nil {
				logger.Warn("command failed", append(attrs, "error", err)...)
				return nil, err
			}
			logger.Debug("command handled", attrs...)
			return result, nil
		})
	}
}
