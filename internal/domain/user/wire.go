package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Wire keys used by the Phoenix API.
const (
	KeyID         = "id"
	KeyFirstName  = "first_name"
	KeyLastName   = "last_name"
	KeyGender     = "gender"
	KeyBirthdate  = "birthdate"
	KeyInsertedAt = "inserted_at"
	KeyUpdatedAt  = "updated_at"
)

// DateLayout is the wire format of the birthdate.
const DateLayout = "2006-01-02"

// Layouts accepted for date-like wire fields. Phoenix emits naive timestamps
// without a zone; those are read as UTC.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// FromWire builds a Record from a decoded JSON object. Missing and null keys
// fall back to the field defaults; only malformed values fail.
func FromWire(fields map[string]any) (Record, error) {
	var r Record

	if v, ok := present(fields, KeyID); ok {
		id, err := intField(KeyID, v)
		if err != nil {
			return Record{}, err
		}
		r.id, r.hasID = id, true
	}

	r.firstName = stringField(fields[KeyFirstName])
	r.lastName = stringField(fields[KeyLastName])
	r.gender = Gender(stringField(fields[KeyGender]))

	var err error
	if r.birthdate, err = timeField(fields, KeyBirthdate); err != nil {
		return Record{}, err
	}
	if !r.birthdate.IsZero() {
		r.birthdate = dateOnly(r.birthdate)
	}
	if r.insertedAt, err = timeField(fields, KeyInsertedAt); err != nil {
		return Record{}, err
	}
	if r.updatedAt, err = timeField(fields, KeyUpdatedAt); err != nil {
		return Record{}, err
	}

	return r, nil
}

// DecodeWire decodes one JSON object into a Record. Numbers are kept as
// json.Number so large ids survive.
func DecodeWire(raw json.RawMessage) (Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Record{}, fmt.Errorf("user: decode wire object: %w", err)
	}

	return FromWire(fields)
}

// ToWire is the request body for create and update. Server-assigned fields
// (id, inserted_at, updated_at) are never sent.
func (r Record) ToWire() map[string]any {
	out := map[string]any{
		KeyFirstName: r.firstName,
		KeyLastName:  r.lastName,
		KeyGender:    string(r.gender),
	}
	if !r.birthdate.IsZero() {
		out[KeyBirthdate] = r.birthdate.Format(DateLayout)
	}
	return out
}

// Snapshot is the full server-shaped representation of r, including the
// id and timestamps. FromWire(r.Snapshot()) reproduces r.
func (r Record) Snapshot() map[string]any {
	out := r.ToWire()
	if r.hasID {
		out[KeyID] = r.id
	}
	if !r.insertedAt.IsZero() {
		out[KeyInsertedAt] = r.insertedAt.Format(time.RFC3339Nano)
	}
	if !r.updatedAt.IsZero() {
		out[KeyUpdatedAt] = r.updatedAt.Format(time.RFC3339Nano)
	}
	return out
}

func present(fields map[string]any, key string) (any, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

func intField(key string, v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if id, err := n.Int64(); err == nil {
			return id, nil
		}
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), nil
		}
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		if id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return id, nil
		}
	}
	return 0, &MalformedFieldError{Field: key, Value: v}
}

func timeField(fields map[string]any, key string) (time.Time, error) {
	v, ok := present(fields, key)
	if !ok {
		return time.Time{}, nil
	}

	s, isString := v.(string)
	if !isString {
		return time.Time{}, &MalformedDateError{Field: key, Value: fmt.Sprint(v)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	t, err := parseWireTime(s)
	if err != nil {
		return time.Time{}, &MalformedDateError{Field: key, Value: s}
	}
	return t, nil
}

func parseWireTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range wireTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
