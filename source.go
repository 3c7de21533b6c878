package triage

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by Process when the input is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// ErrNoSource is returned by Process when no registered source recognizes
// the batch envelope.
var ErrNoSource = errors.New("no source matched batch")

// Source parses a raw batch document into individual record values.
//
// Sources are matched using their Discriminator before Parse is called,
// so cheap detection happens before the full extraction. Implement Source
// to support different envelope formats: an events array, SNS
// notifications, SQS message bodies, or a custom shape.
//
// Parse returns one value per record position. Values that are not
// string-keyed mappings flow through to validation, which rejects them as
// malformed — a source never drops a record silently.
type Source interface {
	// Name returns the source identifier for logging and metrics.
	Name() string

	// Discriminator returns a predicate for cheap envelope detection.
	Discriminator() Discriminator

	// Parse extracts the batch's records from the raw document.
	Parse(raw []byte) ([]any, error)
}

// SourceFunc creates a Source from a name, discriminator, and parse
// function, for simple sources that don't need a struct.
func SourceFunc(name string, disc Discriminator, parse func([]byte) ([]any, error)) Source {
	return &sourceFunc{name: name, disc: disc, parse: parse}
}

type sourceFunc struct {
	name  string
	disc  Discriminator
	parse func([]byte) ([]any, error)
}

func (s *sourceFunc) Name() string                 { return s.name }
func (s *sourceFunc) Discriminator() Discriminator { return s.disc }
func (s *sourceFunc) Parse(raw []byte) ([]any, error) {
	return s.parse(raw)
}

// Envelope builds a source that extracts the record array at a gjson path.
// Each array element becomes one record value.
func Envelope(name, path string, disc Discriminator) Source {
	return &envelope{name: name, disc: disc, path: path}
}

// EventsEnvelope recognizes the generic bus envelope {"events": [...]}.
func EventsEnvelope() Source {
	return Envelope("events", "events", HasFields("events"))
}

// SNSEnvelope recognizes an SNS notification delivery. Each element of
// Records carries the published record as a JSON-encoded string in
// Sns.Message.
func SNSEnvelope() Source {
	return &envelope{
		name:   "sns",
		disc:   HasFields("Records", "Records.0.Sns.Message"),
		path:   "Records",
		unwrap: "Sns.Message",
	}
}

// SQSEnvelope recognizes an SQS event batch. Each element of Records
// carries the queued record as a JSON-encoded string in body.
func SQSEnvelope() Source {
	return &envelope{
		name:   "sqs",
		disc:   And(HasFields("Records"), FieldEquals("Records.0.eventSource", "aws:sqs")),
		path:   "Records",
		unwrap: "body",
	}
}

// envelope extracts records from an array at path. When unwrap is set,
// each array element carries its record as a JSON-encoded string at that
// sub-path (the SNS/SQS double-encoding convention).
type envelope struct {
	name   string
	disc   Discriminator
	path   string
	unwrap string
}

func (e *envelope) Name() string                 { return e.name }
func (e *envelope) Discriminator() Discriminator { return e.disc }

func (e *envelope) Parse(raw []byte) ([]any, error) {
	arr := gjson.GetBytes(raw, e.path)
	if !arr.IsArray() {
		return nil, fmt.Errorf("source %s: %q is not an array", e.name, e.path)
	}

	elements := arr.Array()
	out := make([]any, 0, len(elements))
	for _, el := range elements {
		if e.unwrap != "" {
			inner := el.Get(e.unwrap)
			if inner.Type != gjson.String {
				// Missing or non-string payload: surface as a malformed
				// record rather than failing the whole batch.
				out = append(out, nil)
				continue
			}
			el = gjson.Parse(inner.Str)
		}
		out = append(out, el.Value())
	}
	return out, nil
}
