package user

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotObject = errors.New("user: wire value is not a JSON object")

// MalformedDateError reports a date-like wire field that could not be parsed.
type MalformedDateError struct {
	Field string
	Value string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("user: malformed date in %q: %q", e.Field, e.Value)
}

// MalformedFieldError reports a wire field of an unusable type, e.g. a
// non-integer id.
type MalformedFieldError struct {
	Field string
	Value any
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("user: malformed value in %q: %v", e.Field, e.Value)
}

// ValidationError maps wire field names to human readable messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "user: invalid input (" + strings.Join(parts, "; ") + ")"
}
