// Package extract pulls typed values out of loosely shaped upstream JSON.
// Upstreams rename fields between versions, so providers describe each value
// as an ordered list of candidate fields and take the first usable one.
package extract

import (
	"strings"

	"quoteproxy/internal/normalize"
)

// Field is a named candidate extractor over a decoded JSON document.
type Field[T any] struct {
	Name    string
	Extract func(doc any) (T, bool)
}

// Lookup walks doc along path. Map keys are matched exactly; a slice step
// descends into its first element.
func Lookup(doc any, path ...string) (any, bool) {
	cur := doc
	for _, key := range path {
		cur = first(cur)
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// NumberAt builds a numeric candidate read from path.
func NumberAt(path ...string) Field[float64] {
	return Field[float64]{
		Name: strings.Join(path, "."),
		Extract: func(doc any) (float64, bool) {
			v, ok := Lookup(first(doc), path...)
			if !ok {
				return 0, false
			}
			return normalize.Number(v)
		},
	}
}

// StringAt builds a string candidate read from path.
func StringAt(path ...string) Field[string] {
	return Field[string]{
		Name: strings.Join(path, "."),
		Extract: func(doc any) (string, bool) {
			v, ok := Lookup(first(doc), path...)
			if !ok {
				return "", false
			}
			s, ok := v.(string)
			s = strings.TrimSpace(s)
			return s, ok && s != ""
		},
	}
}

// FirstPositive returns the first candidate yielding a value > 0 and the
// name of the field that matched.
func FirstPositive(doc any, fields ...Field[float64]) (float64, string, bool) {
	for _, f := range fields {
		if v, ok := f.Extract(doc); ok && v > 0 {
			return v, f.Name, true
		}
	}
	return 0, "", false
}

// FirstString returns the first candidate yielding a non-empty string.
func FirstString(doc any, fields ...Field[string]) (string, bool) {
	for _, f := range fields {
		if v, ok := f.Extract(doc); ok {
			return v, true
		}
	}
	return "", false
}

func first(v any) any {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	}
	return v
}
