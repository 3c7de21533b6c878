package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNilHandler is returned when a nil handler is registered. Handler
// wiring is a programming error in the caller, so it fails at
// registration time, before any records are processed.
var ErrNilHandler = errors.New("nil handler")

// ErrTimeout is the error carried by a Failed result when a Deadline
// wrapped handler exceeds its budget.
var ErrTimeout = errors.New("timeout")

// Handler processes one group of records sharing a category.
//
// Example:
//
//	type OrderHandler struct {
//	    queue QueueAPI
//	}
//
//	func (h *OrderHandler) Handle(ctx context.Context, g triage.Group) error {
//	    for _, rec := range g.Records {
//	        if err := h.queue.Send(ctx, rec); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	}
type Handler interface {
	Handle(ctx context.Context, g Group) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, g Group) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, g Group) error {
	return f(ctx, g)
}

// Typed adapts a function taking a typed slice into a Handler. Each
// record in the group is re-marshaled through JSON into T before the
// function runs, so handlers can work with structs instead of raw maps.
//
// Example:
//
//	type UserEvent struct {
//	    Name string `json:"name"`
//	    ID   int    `json:"id"`
//	}
//
//	h := triage.Typed(func(ctx context.Context, category string, items []UserEvent) error {
//	    // ...
//	    return nil
//	})
func Typed[T any](fn func(ctx context.Context, category string, items []T) error) Handler {
	return HandlerFunc(func(ctx context.Context, g Group) error {
		items := make([]T, 0, len(g.Records))
		for _, rec := range g.Records {
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			items = append(items, item)
		}
		return fn(ctx, g.Category, items)
	})
}

// Deadline wraps a handler so each invocation runs under its own timeout,
// surfacing as a Failed result carrying ErrTimeout. The core pipeline
// imposes no timeout itself; this decorator is for the calling layer.
//
// The wrapped handler keeps running in its goroutine after a timeout; it
// observes the cancellation through its context.
func Deadline(h Handler, d time.Duration) Handler {
	return HandlerFunc(func(ctx context.Context, g Group) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- safeHandle(ctx, h, g)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ErrTimeout
		}
	})
}

// Pipeline validates, classifies, groups, and dispatches batches of
// records.
//
// Usage:
//  1. Create a pipeline with New
//  2. Register handlers with Register (or WithHandler options)
//  3. Add envelope sources with AddSource if decoding raw batches
//  4. Process batches with Run (in-memory) or Process (raw bytes)
//
// Pipeline is safe for concurrent use after configuration. Do not call
// AddSource or Register after the first Run or Process.
type Pipeline struct {
	schema     Schema
	classifier Classifier
	handlers   map[string]Handler
	sources    []Source
	workers    int
	hooks      hooks

	// Adaptive ordering: try last successful source first.
	lastMatch atomic.Value // stores string
}

// Option configures a Pipeline. Options that express invalid
// configuration (nil handler, zero workers) fail New.
type Option func(*Pipeline) error

// New creates a Pipeline with the given options.
//
// By default the pipeline requires name and id fields, classifies by the
// prefix of name before ":", and dispatches groups sequentially.
//
// Example:
//
//	p, err := triage.New(
//	    triage.WithHandler("user", userHandler),
//	    triage.WithOnFailed(func(ctx context.Context, category string, n int, err error, d time.Duration) {
//	        logger.Error("group failed", zap.String("category", category), zap.Error(err))
//	    }),
//	)
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		schema:     DefaultSchema(),
		classifier: NamePrefix(":"),
		handlers:   make(map[string]Handler),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// WithSchema overrides the required-field schema.
func WithSchema(s Schema) Option {
	return func(p *Pipeline) error {
		p.schema = s
		return nil
	}
}

// WithClassifier overrides the default name-prefix classifier.
func WithClassifier(c Classifier) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("nil classifier")
		}
		p.classifier = c
		return nil
	}
}

// WithHandler registers a handler for a category at construction time.
func WithHandler(category string, h Handler) Option {
	return func(p *Pipeline) error {
		return p.Register(category, h)
	}
}

// WithWorkers enables concurrent dispatch: up to n groups are handled in
// parallel. Result content and order are unchanged; each result slot is
// written by the worker that owns that group. One group's failure or
// delay never blocks or cancels another group's dispatch.
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("worker count must be at least 1, got %d", n)
		}
		p.workers = n
		return nil
	}
}

// Register adds a handler for a category. Registering a nil handler or an
// empty category returns an error immediately — handler wiring is checked
// before any records are processed.
func (p *Pipeline) Register(category string, h Handler) error {
	if category == "" {
		return errors.New("empty category")
	}
	if h == nil {
		return fmt.Errorf("register %q: %w", category, ErrNilHandler)
	}
	p.handlers[category] = h
	return nil
}

// RegisterFunc is a convenience method for registering a handler
// function.
func (p *Pipeline) RegisterFunc(category string, fn func(ctx context.Context, g Group) error) error {
	return p.Register(category, HandlerFunc(fn))
}

// AddSource registers an envelope source for Process. Sources are matched
// using their Discriminator in registration order.
func (p *Pipeline) AddSource(s Source) {
	p.sources = append(p.sources, s)
}

// Run processes one in-memory batch: validate, classify, group, dispatch.
//
// Every input element is accounted for in the result — either inside a
// group's records or in the rejected list. Dispatch results appear in
// first-seen category order. A failing handler yields a Failed result for
// its group and never prevents other groups from being dispatched.
func (p *Pipeline) Run(ctx context.Context, batch []any) Result {
	ctx = p.hooks.callOnBatch(ctx, len(batch))

	accepted, rejected := p.schema.Validate(batch)

	classified := make([]Record, 0, len(accepted))
	for _, rec := range accepted {
		category, err := p.classifier.Categorize(rec)
		if err != nil {
			rejected = append(rejected, Rejection{Record: rec, Reason: err.Error()})
			continue
		}
		classified = append(classified, rec.withCategory(category))
	}

	for _, rej := range rejected {
		p.hooks.callOnReject(ctx, rej)
	}

	groups := groupByCategory(classified)

	return Result{
		Dispatches: p.dispatchAll(ctx, groups),
		Rejected:   rejected,
	}
}

// Process decodes a raw batch document through the registered sources and
// runs the resulting records. The returned error covers decoding only;
// handler failures are reported per group in the Result.
func (p *Pipeline) Process(ctx context.Context, raw []byte) (Result, error) {
	if !gjson.ValidBytes(raw) {
		return Result{}, ErrInvalidJSON
	}

	source := p.match(gjson.ParseBytes(raw))
	if source == nil {
		return Result{}, ErrNoSource
	}

	batch, err := source.Parse(raw)
	if err != nil {
		return Result{}, fmt.Errorf("parse failed for source %s: %w", source.Name(), err)
	}

	return p.Run(ctx, batch), nil
}

// match finds a source whose discriminator matches the document, trying
// the last successful source first.
func (p *Pipeline) match(doc gjson.Result) Source {
	if v := p.lastMatch.Load(); v != nil {
		if name, ok := v.(string); ok && name != "" {
			for _, src := range p.sources {
				if src.Name() == name && src.Discriminator().Match(doc) {
					return src
				}
			}
		}
	}

	for _, src := range p.sources {
		if src.Discriminator().Match(doc) {
			p.lastMatch.Store(src.Name())
			return src
		}
	}
	return nil
}

// groupByCategory buckets classified records in a single pass, preserving
// first-seen category order and within-category input order. Categories
// with no records are never materialized.
func groupByCategory(records []Record) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, rec := range records {
		category, _ := rec.Category()
		i, seen := index[category]
		if !seen {
			i = len(groups)
			index[category] = i
			groups = append(groups, Group{Category: category})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}

// dispatchAll routes every group to its handler, sequentially or across a
// bounded worker pool. Results are indexed by group, so the output order
// is first-seen category order either way.
func (p *Pipeline) dispatchAll(ctx context.Context, groups []Group) []DispatchResult {
	if len(groups) == 0 {
		return nil
	}

	results := make([]DispatchResult, len(groups))

	if p.workers <= 1 {
		for i, g := range groups {
			results[i] = p.dispatch(ctx, g)
		}
		return results
	}

	workers := min(p.workers, len(groups))
	next := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				results[i] = p.dispatch(ctx, groups[i])
			}
		}()
	}

	for i := range groups {
		next <- i
	}
	close(next)
	wg.Wait()

	return results
}

// dispatch routes one group. Handler panics are recovered here so one
// group's failure is contained at the group boundary.
func (p *Pipeline) dispatch(ctx context.Context, g Group) DispatchResult {
	handler, found := p.handlers[g.Category]
	if !found {
		p.hooks.callOnUnrouted(ctx, g.Category, len(g.Records))
		return DispatchResult{Status: StatusUnrouted, Category: g.Category, Records: g.Records}
	}

	p.hooks.callOnDispatch(ctx, g.Category, len(g.Records))

	start := time.Now()
	err := safeHandle(ctx, handler, g)
	duration := time.Since(start)

	if err != nil {
		p.hooks.callOnFailed(ctx, g.Category, len(g.Records), err, duration)
		return DispatchResult{Status: StatusFailed, Category: g.Category, Records: g.Records, Err: err}
	}

	p.hooks.callOnHandled(ctx, g.Category, len(g.Records), duration)
	return DispatchResult{Status: StatusHandled, Category: g.Category, Records: g.Records}
}

// safeHandle invokes a handler, converting a panic into an error.
func safeHandle(ctx context.Context, h Handler, g Group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, g)
}
