package triage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WithZapLogger wires the pipeline's hooks to a zap logger: rejections
// log at warn, failed groups at error, handled and unrouted groups at
// info and debug. The pipeline itself stays logging-agnostic; this is a
// convenience bridge for callers already on zap.
func WithZapLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) error {
		p.hooks.onReject = append(p.hooks.onReject, func(ctx context.Context, rej Rejection) {
			logger.Warn("Record rejected",
				zap.String("reason", rej.Reason),
				zap.Any("id", rej.Record[IDKey]),
			)
		})
		p.hooks.onHandled = append(p.hooks.onHandled, func(ctx context.Context, category string, size int, d time.Duration) {
			logger.Info("Group handled",
				zap.String("category", category),
				zap.Int("records", size),
				zap.Duration("duration", d),
			)
		})
		p.hooks.onFailed = append(p.hooks.onFailed, func(ctx context.Context, category string, size int, err error, d time.Duration) {
			logger.Error("Group handler failed",
				zap.Error(err),
				zap.String("category", category),
				zap.Int("records", size),
				zap.Duration("duration", d),
			)
		})
		p.hooks.onUnrouted = append(p.hooks.onUnrouted, func(ctx context.Context, category string, size int) {
			logger.Debug("Group unrouted",
				zap.String("category", category),
				zap.Int("records", size),
			)
		})
		return nil
	}
}
