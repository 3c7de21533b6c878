package triage

// Schema declares the keys a record must carry to be accepted. Only
// presence is checked — an empty string or zero value still passes. Keys
// are checked in declaration order so a record missing several fields is
// always rejected with the same reason.
type Schema struct {
	required []string
}

// RequiredFields builds a schema that accepts records carrying every
// given key.
func RequiredFields(keys ...string) Schema {
	return Schema{required: keys}
}

// DefaultSchema requires the name and id fields, matching the envelope
// the upstream event bus emits.
func DefaultSchema() Schema {
	return RequiredFields(NameKey, IDKey)
}

// Validate partitions a batch into accepted records and rejections. Every
// input element lands in exactly one of the two slices; nothing is lost or
// duplicated. Input elements that are not string-keyed mappings are
// rejected with ReasonMalformed rather than treated as a fault.
func (s Schema) Validate(batch []any) (accepted []Record, rejected []Rejection) {
	for _, item := range batch {
		rec, ok := asRecord(item)
		if !ok {
			rejected = append(rejected, Rejection{Reason: ReasonMalformed})
			continue
		}

		if missing, ok := s.check(rec); !ok {
			rejected = append(rejected, Rejection{
				Record: rec,
				Reason: "missing field: " + missing,
			})
			continue
		}

		accepted = append(accepted, rec)
	}
	return accepted, rejected
}

// check returns the first missing required key, in declaration order.
func (s Schema) check(rec Record) (string, bool) {
	for _, key := range s.required {
		if _, ok := rec[key]; !ok {
			return key, false
		}
	}
	return "", true
}

// asRecord coerces a batch element into a Record. JSON decoding yields
// map[string]any, but callers constructing batches in code may pass a
// Record directly.
func asRecord(item any) (Record, bool) {
	switch v := item.(type) {
	case Record:
		return v, true
	case map[string]any:
		return Record(v), true
	default:
		return nil, false
	}
}
