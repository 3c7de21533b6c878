// Package triage provides a batch classification and dispatch pipeline for
// event-driven systems.
//
// The triage package takes a heterogeneous batch of event records,
// validates each record against a required-field schema, classifies it by
// a category derived from its name, groups records by category, and routes
// each group to a registered handler — reporting a per-group outcome and
// never letting one group's failure stop the rest of the batch.
//
// # Quick Start
//
// Create a pipeline, register handlers, and run a batch:
//
//	p, err := triage.New(
//	    triage.WithHandler("user", userHandler),
//	    triage.WithHandler("order", orderHandler),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := p.Run(ctx, batch)
//	for _, d := range result.Dispatches {
//	    fmt.Println(d.Category, d.Status)
//	}
//
// # Pipeline Stages
//
// A batch flows one way through four stages:
//
//   - Validate: partition records into accepted and rejected against a
//     required-field schema (presence-only checks)
//   - Classify: derive a category from each accepted record's name
//   - Group: bucket records by category, preserving first-seen category
//     order and within-category input order
//   - Dispatch: invoke the handler registered for each category
//
// Each stage produces fresh values; nothing is mutated after being handed
// to the next stage, and every input record is accounted for in the
// result — either inside a group or in the rejected list.
//
// # Outcomes
//
// Every group reaches exactly one terminal status:
//
//   - Handled: the handler ran to completion
//   - Failed: the handler returned an error or panicked; the error is
//     captured on the result
//   - Unrouted: no handler is registered for the category, which is
//     documented behavior for categories with no registered interest, not
//     an error
//
// Failure isolation is the pipeline's most important invariant: a Failed
// group never prevents other groups from being dispatched, and the caller
// always receives a complete result for a submitted batch. The core
// performs no retries; retry policy belongs to the calling layer.
//
// # Classification
//
// By default the category is the prefix of the record's name before the
// first ":" — "user:created" classifies as "user". A name without the
// separator is its own category. Override with WithClassifier:
//
//	p, err := triage.New(
//	    triage.WithClassifier(triage.FieldValue("event_type")),
//	)
//
// # Sources
//
// Process decodes raw batch documents through registered sources, each
// pairing a cheap Discriminator with a full parse. Prebuilt sources cover
// the common envelopes:
//
//	p.AddSource(triage.EventsEnvelope()) // {"events": [...]}
//	p.AddSource(triage.SNSEnvelope())    // Records[].Sns.Message
//	p.AddSource(triage.SQSEnvelope())    // Records[].body
//
//	result, err := p.Process(ctx, rawBatch)
//
// # Hooks
//
// Hooks provide observability without coupling to a logging or metrics
// system:
//
//	p, err := triage.New(
//	    triage.WithOnFailed(func(ctx context.Context, category string, n int, err error, d time.Duration) {
//	        logger.Error("group failed", zap.String("category", category), zap.Error(err))
//	    }),
//	    triage.WithOnReject(func(ctx context.Context, rej triage.Rejection) {
//	        logger.Warn("record rejected", zap.String("reason", rej.Reason))
//	    }),
//	)
//
// WithZapLogger and WithMetrics bridge the full hook set to zap and
// Prometheus in one option.
//
// # Concurrency
//
// Dispatch is sequential by default. WithWorkers(n) handles up to n
// groups in parallel; result content and order are unchanged, each
// handler sees only its own group, and one handler's failure or delay
// never blocks or cancels another group's dispatch.
//
// Pipeline is safe for concurrent use after configuration is complete. Do
// not call AddSource or Register after the first Run or Process.
package triage
