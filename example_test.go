package triage_test

import (
	"context"
	"fmt"
	"log"

	"github.com/bjaus/triage"
)

// UserHandler receives all records classified under the "user" category.
type UserHandler struct{}

func (h *UserHandler) Handle(ctx context.Context, g triage.Group) error {
	for _, rec := range g.Records {
		name, _ := rec.Name()
		fmt.Printf("user event: %s (id=%v)\n", name, rec[triage.IDKey])
	}
	return nil
}

func Example() {
	p, err := triage.New(
		triage.WithHandler("user", &UserHandler{}),
	)
	if err != nil {
		log.Fatal(err)
	}

	batch := []any{
		map[string]any{"name": "user:created", "id": 1},
		map[string]any{"name": "order:placed", "id": 8},
		map[string]any{"name": "user:updated", "id": 2},
	}

	result := p.Run(context.Background(), batch)
	for _, d := range result.Dispatches {
		fmt.Printf("%s: %s (%d records)\n", d.Category, d.Status, len(d.Records))
	}

	// Output:
	// user event: user:created (id=1)
	// user event: user:updated (id=2)
	// user: handled (2 records)
	// order: unrouted (1 records)
}

func Example_handlerFunc() {
	p, err := triage.New()
	if err != nil {
		log.Fatal(err)
	}

	// Register with a function instead of a struct
	_ = p.RegisterFunc("order", func(ctx context.Context, g triage.Group) error {
		fmt.Println("orders in group:", len(g.Records))
		return nil
	})

	p.Run(context.Background(), []any{
		map[string]any{"name": "order:placed", "id": 8},
		map[string]any{"name": "order:shipped", "id": 9},
	})

	// Output:
	// orders in group: 2
}

func Example_rejections() {
	p, err := triage.New()
	if err != nil {
		log.Fatal(err)
	}

	batch := []any{
		map[string]any{"name": "user:created", "id": 1},
		map[string]any{"name": "order:placed"}, // missing id
		"not a record",
	}

	result := p.Run(context.Background(), batch)
	for _, rej := range result.Rejected {
		fmt.Println("rejected:", rej.Reason)
	}

	// Output:
	// rejected: missing field: id
	// rejected: malformed record
}

func Example_process() {
	p, err := triage.New(
		triage.WithHandler("order", triage.HandlerFunc(func(ctx context.Context, g triage.Group) error {
			fmt.Println("handling", len(g.Records), "order events")
			return nil
		})),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Decode a raw bus envelope before running the batch.
	p.AddSource(triage.EventsEnvelope())

	raw := []byte(`{"events": [
		{"name": "order:placed", "id": 8},
		{"name": "order:shipped", "id": 9}
	]}`)

	if _, err := p.Process(context.Background(), raw); err != nil {
		log.Fatal(err)
	}

	// Output:
	// handling 2 order events
}

func Example_typed() {
	type OrderEvent struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	}

	p, err := triage.New(
		triage.WithHandler("order", triage.Typed(func(ctx context.Context, category string, items []OrderEvent) error {
			for _, item := range items {
				fmt.Printf("%s #%d\n", item.Name, item.ID)
			}
			return nil
		})),
	)
	if err != nil {
		log.Fatal(err)
	}

	p.Run(context.Background(), []any{
		map[string]any{"name": "order:placed", "id": 8},
		map[string]any{"name": "order:shipped", "id": 9},
	})

	// Output:
	// order:placed #8
	// order:shipped #9
}
