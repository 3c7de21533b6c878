package triage

import (
	"context"
	"time"
)

// OnBatchFunc is called once per batch before validation. Use this to
// enrich the context with logging fields or trace spans; the returned
// context is used for the rest of the batch.
type OnBatchFunc func(ctx context.Context, size int) context.Context

// OnRejectFunc is called for each record that fails validation or
// classification.
type OnRejectFunc func(ctx context.Context, rej Rejection)

// OnDispatchFunc is called just before a group's handler executes.
type OnDispatchFunc func(ctx context.Context, category string, size int)

// OnHandledFunc is called after a group's handler completes successfully.
type OnHandledFunc func(ctx context.Context, category string, size int, duration time.Duration)

// OnFailedFunc is called after a group's handler returns an error or
// panics.
type OnFailedFunc func(ctx context.Context, category string, size int, err error, duration time.Duration)

// OnUnroutedFunc is called for each group with no registered handler.
type OnUnroutedFunc func(ctx context.Context, category string, size int)

// hooks holds all configured hook functions.
type hooks struct {
	onBatch    []OnBatchFunc
	onReject   []OnRejectFunc
	onDispatch []OnDispatchFunc
	onHandled  []OnHandledFunc
	onFailed   []OnFailedFunc
	onUnrouted []OnUnroutedFunc
}

// WithOnBatch adds a hook called once per batch before validation.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	triage.WithOnBatch(func(ctx context.Context, size int) context.Context {
//	    return context.WithValue(ctx, batchKey, uuid.NewString())
//	})
func WithOnBatch(fn OnBatchFunc) Option {
	return func(p *Pipeline) error {
		p.hooks.onBatch = append(p.hooks.onBatch, fn)
		return nil
	}
}

// WithOnReject adds a hook called for each rejected record. Multiple
// hooks are called in order.
//
// Example:
//
//	triage.WithOnReject(func(ctx context.Context, rej triage.Rejection) {
//	    logger.Warn("record rejected", zap.String("reason", rej.Reason))
//	})
func WithOnReject(fn OnRejectFunc) Option {
	return func(p *Pipeline) error {
		p.hooks.onReject = append(p.hooks.onReject, fn)
		return nil
	}
}

// WithOnDispatch adds a hook called just before each group's handler
// executes. Multiple hooks are called in order.
//
// With concurrent dispatch enabled, hooks may be called from multiple
// goroutines and must be safe for concurrent use.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(p *Pipeline) error {
		p.hooks.onDispatch = append(p.hooks.onDispatch, fn)
		return nil
	}
}

// WithOnHandled adds a hook called after a group's handler succeeds.
// Multiple hooks are called in order.
//
// Example:
//
//	triage.WithOnHandled(func(ctx context.Context, category string, n int, d time.Duration) {
//	    metrics.Timing("triage.handled", d, "category:"+category)
//	})
func WithOnHandled(fn OnHandledFunc) Option {
	return func(p *Pipeline) error {
		p.hooks.onHandled = append(p.hooks.onHandled, fn)
		return nil
	}
}

// WithOnFailed adds a hook called after a group's handler fails. Multiple
// hooks are called in order.
func WithOnFailed(fn OnFailedFunc) Option {
	return func(p *Pipeline) error {
		p.hooks.onFailed = append(p.hooks.onFailed, fn)
		return nil
	}
}

// WithOnUnrouted adds a hook called for each group with no registered
// handler. Multiple hooks are called in order.
func WithOnUnrouted(fn OnUnroutedFunc) Option {
	return func(p *Pipeline) error {
		p.hooks.onUnrouted = append(p.hooks.onUnrouted, fn)
		return nil
	}
}

// callOnBatch chains the batch hooks through the context.
func (h hooks) callOnBatch(ctx context.Context, size int) context.Context {
	for _, fn := range h.onBatch {
		ctx = fn(ctx, size)
	}
	return ctx
}

func (h hooks) callOnReject(ctx context.Context, rej Rejection) {
	for _, fn := range h.onReject {
		fn(ctx, rej)
	}
}

func (h hooks) callOnDispatch(ctx context.Context, category string, size int) {
	for _, fn := range h.onDispatch {
		fn(ctx, category, size)
	}
}

func (h hooks) callOnHandled(ctx context.Context, category string, size int, d time.Duration) {
	for _, fn := range h.onHandled {
		fn(ctx, category, size, d)
	}
}

func (h hooks) callOnFailed(ctx context.Context, category string, size int, err error, d time.Duration) {
	for _, fn := range h.onFailed {
		fn(ctx, category, size, err, d)
	}
}

func (h hooks) callOnUnrouted(ctx context.Context, category string, size int) {
	for _, fn := range h.onUnrouted {
		fn(ctx, category, size)
	}
}
