package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/gate/op"
)

// Logging returns middleware that logs operation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info *op.Info, next Handler) error {
		start := time.Now()
		logger.Info("operation started",
			slog.String("op_id", info.ID.String()),
			slog.Duration("queued_for", start.Sub(info.EnqueuedAt)),
		)

		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("operation failed",
				slog.String("op_id", info.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("operation completed",
				slog.String("op_id", info.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
