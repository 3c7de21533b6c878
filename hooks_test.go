package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type contextKey string

type HooksSuite struct {
	suite.Suite
}

func TestHooksSuite(t *testing.T) {
	suite.Run(t, new(HooksSuite))
}

func (s *HooksSuite) batch() []any {
	return []any{
		map[string]any{"name": "user:created", "id": 1},
		map[string]any{"name": "order:placed"},
		map[string]any{"name": "ghost:seen", "id": 3},
	}
}

func (s *HooksSuite) TestOnBatchContextReachesHandler() {
	var handlerCtx context.Context

	p, err := New(
		WithOnBatch(func(ctx context.Context, size int) context.Context {
			return context.WithValue(ctx, contextKey("batch"), "enriched")
		}),
	)
	s.Require().NoError(err)
	s.Require().NoError(p.RegisterFunc("user", func(ctx context.Context, g Group) error {
		handlerCtx = ctx
		return nil
	}))

	p.Run(context.Background(), s.batch())

	s.Require().NotNil(handlerCtx)
	s.Assert().Equal("enriched", handlerCtx.Value(contextKey("batch")))
}

func (s *HooksSuite) TestMultipleOnBatchHooksChain() {
	var sizes []int

	p, err := New(
		WithOnBatch(func(ctx context.Context, size int) context.Context {
			sizes = append(sizes, size)
			return context.WithValue(ctx, contextKey("first"), true)
		}),
		WithOnBatch(func(ctx context.Context, size int) context.Context {
			s.Assert().Equal(true, ctx.Value(contextKey("first")))
			sizes = append(sizes, size)
			return ctx
		}),
	)
	s.Require().NoError(err)

	p.Run(context.Background(), s.batch())

	s.Assert().Equal([]int{3, 3}, sizes)
}

func (s *HooksSuite) TestOnRejectSeesEveryRejection() {
	var reasons []string

	p, err := New(
		WithOnReject(func(ctx context.Context, rej Rejection) {
			reasons = append(reasons, rej.Reason)
		}),
	)
	s.Require().NoError(err)

	p.Run(context.Background(), s.batch())

	s.Assert().Equal([]string{"missing field: id"}, reasons)
}

func (s *HooksSuite) TestDispatchAndHandledFireInOrder() {
	var events []string

	p, err := New(
		WithOnDispatch(func(ctx context.Context, category string, size int) {
			events = append(events, "dispatch:"+category)
		}),
		WithOnHandled(func(ctx context.Context, category string, size int, d time.Duration) {
			events = append(events, "handled:"+category)
		}),
		WithOnUnrouted(func(ctx context.Context, category string, size int) {
			events = append(events, "unrouted:"+category)
		}),
	)
	s.Require().NoError(err)
	s.Require().NoError(p.RegisterFunc("user", func(ctx context.Context, g Group) error {
		return nil
	}))

	p.Run(context.Background(), s.batch())

	s.Assert().Equal([]string{"dispatch:user", "handled:user", "unrouted:ghost"}, events)
}

func (s *HooksSuite) TestOnFailedCarriesHandlerError() {
	wantErr := errors.New("handler exploded")
	var gotErr error
	var gotCategory string

	p, err := New(
		WithOnFailed(func(ctx context.Context, category string, size int, err error, d time.Duration) {
			gotErr = err
			gotCategory = category
		}),
	)
	s.Require().NoError(err)
	s.Require().NoError(p.RegisterFunc("user", func(ctx context.Context, g Group) error {
		return wantErr
	}))

	p.Run(context.Background(), s.batch())

	s.Assert().ErrorIs(gotErr, wantErr)
	s.Assert().Equal("user", gotCategory)
}

func (s *HooksSuite) TestMultipleHooksCalledInOrder() {
	var order []string

	p, err := New(
		WithOnHandled(func(ctx context.Context, category string, size int, d time.Duration) {
			order = append(order, "first")
		}),
		WithOnHandled(func(ctx context.Context, category string, size int, d time.Duration) {
			order = append(order, "second")
		}),
	)
	s.Require().NoError(err)
	s.Require().NoError(p.RegisterFunc("user", func(ctx context.Context, g Group) error {
		return nil
	}))

	p.Run(context.Background(), []any{map[string]any{"name": "user:created", "id": 1}})

	s.Assert().Equal([]string{"first", "second"}, order)
}
