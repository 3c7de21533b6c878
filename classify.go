package triage

import (
	"errors"
	"fmt"
	"strings"
)

// errNonStringName re-routes a record to the rejection path when its name
// field cannot be classified.
var errNonStringName = errors.New(ReasonNonStringName)

// Classifier derives a category from an accepted record. Returning an
// error re-routes the record to the rejection path instead of failing the
// batch.
type Classifier interface {
	Categorize(rec Record) (string, error)
}

// ClassifierFunc is a function adapter for Classifier.
type ClassifierFunc func(rec Record) (string, error)

// Categorize implements the Classifier interface.
func (f ClassifierFunc) Categorize(rec Record) (string, error) {
	return f(rec)
}

// NamePrefix returns the default classifier: the category is the
// substring of the record's name before the first occurrence of sep. A
// name without the separator is its own category — a permissive default,
// not an error.
//
// With sep ":", "user:created" classifies as "user" and "standalone"
// classifies as "standalone".
func NamePrefix(sep string) Classifier {
	return namePrefix{sep: sep}
}

type namePrefix struct {
	sep string
}

func (c namePrefix) Categorize(rec Record) (string, error) {
	name, ok := rec.Name()
	if !ok {
		return "", errNonStringName
	}
	prefix, _, _ := strings.Cut(name, c.sep)
	return prefix, nil
}

// FieldValue returns a classifier that uses the string value of an
// arbitrary field as the category, for buses that carry an explicit type
// field instead of a namespaced name.
func FieldValue(key string) Classifier {
	return fieldValue{key: key}
}

type fieldValue struct {
	key string
}

func (c fieldValue) Categorize(rec Record) (string, error) {
	v, ok := rec[c.key]
	if !ok {
		return "", fmt.Errorf("missing field: %s", c.key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("non-string %s", c.key)
	}
	return s, nil
}
