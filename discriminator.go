package triage

import "github.com/tidwall/gjson"

// Discriminator decides whether a source recognizes a raw batch document.
// Discriminators are cheap field checks evaluated before the source's full
// parse.
type Discriminator interface {
	Match(doc gjson.Result) bool
}

// HasFields returns a Discriminator that matches when every path exists.
// Paths use gjson syntax, so nested fields like "Records.0.Sns" work.
func HasFields(paths ...string) Discriminator {
	return hasFields{paths: paths}
}

type hasFields struct {
	paths []string
}

func (d hasFields) Match(doc gjson.Result) bool {
	for _, p := range d.paths {
		if !doc.Get(p).Exists() {
			return false
		}
	}
	return true
}

// FieldEquals returns a Discriminator that matches when the path holds
// exactly the given string value.
func FieldEquals(path, value string) Discriminator {
	return fieldEquals{path: path, value: value}
}

type fieldEquals struct {
	path  string
	value string
}

func (d fieldEquals) Match(doc gjson.Result) bool {
	r := doc.Get(d.path)
	return r.Type == gjson.String && r.Str == d.value
}

// And returns a Discriminator that matches when all discriminators match.
func And(ds ...Discriminator) Discriminator {
	return and{ds: ds}
}

type and struct {
	ds []Discriminator
}

func (d and) Match(doc gjson.Result) bool {
	for _, disc := range d.ds {
		if !disc.Match(doc) {
			return false
		}
	}
	return true
}

// Or returns a Discriminator that matches when any discriminator matches.
func Or(ds ...Discriminator) Discriminator {
	return or{ds: ds}
}

type or struct {
	ds []Discriminator
}

func (d or) Match(doc gjson.Result) bool {
	for _, disc := range d.ds {
		if disc.Match(doc) {
			return true
		}
	}
	return false
}
