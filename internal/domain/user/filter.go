package user

import (
	"strings"
	"time"
)

// Filter narrows a user listing. Zero-valued fields do not constrain.
type Filter struct {
	FirstName     string
	LastName      string
	Gender        Gender
	BirthdateFrom *time.Time
	BirthdateTo   *time.Time
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.FirstName) == "" &&
		strings.TrimSpace(f.LastName) == "" &&
		f.Gender == "" &&
		f.BirthdateFrom == nil &&
		f.BirthdateTo == nil
}

// Match reports whether r satisfies every set criterion. Names match as
// case-insensitive substrings; the birthdate range is inclusive and excludes
// records without a birthdate.
func (f Filter) Match(r Record) bool {
	if !containsFold(r.firstName, f.FirstName) || !containsFold(r.lastName, f.LastName) {
		return false
	}

	if f.Gender != "" && r.gender != f.Gender {
		return false
	}

	if f.BirthdateFrom == nil && f.BirthdateTo == nil {
		return true
	}
	if r.birthdate.IsZero() {
		return false
	}
	if f.BirthdateFrom != nil && r.birthdate.Before(dateOnly(*f.BirthdateFrom)) {
		return false
	}
	if f.BirthdateTo != nil && r.birthdate.After(dateOnly(*f.BirthdateTo)) {
		return false
	}
	return true
}

// Apply returns the records matching f, preserving order.
func (f Filter) Apply(records []Record) []Record {
	if f.IsZero() {
		return records
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func containsFold(value, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}
