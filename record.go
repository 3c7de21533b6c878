package triage

import "maps"

// Record is one inbound event: a string-keyed mapping with an arbitrary
// shape. The pipeline only interprets two keys — NameKey for classification
// and IDKey for traceability — everything else is carried through verbatim
// to the handler.
type Record map[string]any

// Keys the pipeline interprets. All other keys are opaque.
const (
	// NameKey holds the namespaced event name (e.g. "user:created").
	NameKey = "name"

	// IDKey holds an identifier used only for traceability. Any type is
	// accepted; only presence is validated.
	IDKey = "id"

	// CategoryKey is set by the classifier on each accepted record. The
	// value is the category derived from the record's name.
	CategoryKey = "category"
)

// Name returns the record's name field, if present and a string.
func (r Record) Name() (string, bool) {
	v, ok := r[NameKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Category returns the category attached by the classifier, if any.
func (r Record) Category() (string, bool) {
	v, ok := r[CategoryKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// withCategory returns a copy of the record with the category attached.
// The input record is never mutated; each stage hands fresh values to the
// next.
func (r Record) withCategory(category string) Record {
	out := maps.Clone(r)
	out[CategoryKey] = category
	return out
}

// Rejection is a record that failed validation or classification, paired
// with a human-readable reason. Rejections are reported back to the caller
// alongside dispatch results; they are never silently dropped.
type Rejection struct {
	// Record holds as much of the original input as was parseable. It is
	// nil when the input was not a mapping at all.
	Record Record

	// Reason identifies the first failed check, e.g. "missing field: name".
	Reason string
}

// Rejection reasons produced by the pipeline.
const (
	// ReasonMalformed marks input that is not a string-keyed mapping.
	ReasonMalformed = "malformed record"

	// ReasonNonStringName marks records whose name field is present but
	// not a string, which makes classification impossible.
	ReasonNonStringName = "non-string name"
)

// Group is all records sharing one category, in their original relative
// order from the input batch.
type Group struct {
	Category string
	Records  []Record
}

// Status is the terminal outcome of routing one group.
type Status string

const (
	// StatusHandled means the group's handler ran to completion.
	StatusHandled Status = "handled"

	// StatusFailed means the group's handler returned an error or
	// panicked. The error is captured on the DispatchResult; it is never
	// fatal to the rest of the batch.
	StatusFailed Status = "failed"

	// StatusUnrouted means no handler is registered for the category.
	// This is documented behavior for categories with no registered
	// interest, not an error.
	StatusUnrouted Status = "unrouted"
)

// DispatchResult is the outcome of routing one group.
type DispatchResult struct {
	Status   Status
	Category string
	Records  []Record

	// Err is set only when Status is StatusFailed.
	Err error
}

// Result is everything the pipeline produced for one batch: one
// DispatchResult per group in first-seen category order, plus every
// rejected record. Accepted plus rejected always accounts for the entire
// input batch.
type Result struct {
	Dispatches []DispatchResult
	Rejected   []Rejection
}

// Handled reports how many groups were dispatched successfully.
func (r Result) Handled() int { return r.count(StatusHandled) }

// Failed reports how many groups had a failing handler.
func (r Result) Failed() int { return r.count(StatusFailed) }

// Unrouted reports how many groups had no registered handler.
func (r Result) Unrouted() int { return r.count(StatusUnrouted) }

func (r Result) count(s Status) int {
	var n int
	for _, d := range r.Dispatches {
		if d.Status == s {
			n++
		}
	}
	return n
}
