package user

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Record is one user as known to the upstream Phoenix API.
//
// Fields are unexported: a Record is built either by New (caller side, before
// a create or update) or by FromWire (server side), and is never modified in
// place afterwards.
type Record struct {
	id        int64
	hasID     bool
	firstName string
	lastName  string
	gender    Gender

	// zero value means absent
	birthdate  time.Time
	insertedAt time.Time
	updatedAt  time.Time
}

// Draft carries the caller-editable fields of a record.
// ID 0 means the record has not been persisted yet.
type Draft struct {
	ID        int64
	FirstName string
	LastName  string
	Gender    Gender
	Birthdate *time.Time
}

func New(d Draft) Record {
	r := Record{
		id:        d.ID,
		hasID:     d.ID != 0,
		firstName: d.FirstName,
		lastName:  d.LastName,
		gender:    d.Gender,
	}
	if d.Birthdate != nil {
		r.birthdate = dateOnly(*d.Birthdate)
	}
	return r
}

// WithID returns a copy of r addressed to the given upstream id.
func (r Record) WithID(id int64) Record {
	r.id = id
	r.hasID = true
	return r
}

func (r Record) ID() (int64, bool) { return r.id, r.hasID }
func (r Record) FirstName() string { return r.firstName }
func (r Record) LastName() string  { return r.lastName }
func (r Record) Gender() Gender    { return r.gender }

func (r Record) Birthdate() (time.Time, bool)  { return r.birthdate, !r.birthdate.IsZero() }
func (r Record) InsertedAt() (time.Time, bool) { return r.insertedAt, !r.insertedAt.IsZero() }
func (r Record) UpdatedAt() (time.Time, bool)  { return r.updatedAt, !r.updatedAt.IsZero() }

// FullName joins first and last name with a single space, tolerating an empty half.
func (r Record) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.firstName) + " " + strings.TrimSpace(r.lastName))
}

// Age returns the number of whole years between the birthdate and now.
func (r Record) Age(now time.Time) (int, bool) {
	if r.birthdate.IsZero() {
		return 0, false
	}

	b := r.birthdate
	n := now.UTC()

	years := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years, true
}

// GenderLabel is the display form of the gender; unknown values are shown
// with their first letter upper-cased.
func (r Record) GenderLabel() string {
	switch r.gender {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	}
	return upperFirst(string(r.gender))
}

func (r Record) FormattedBirthdate() string {
	return formatOrEmpty(r.birthdate, DateLayout)
}

func (r Record) FormattedInsertedAt() string {
	return formatOrEmpty(r.insertedAt, displayTimestampLayout)
}

func (r Record) FormattedUpdatedAt() string {
	return formatOrEmpty(r.updatedAt, displayTimestampLayout)
}

const displayTimestampLayout = "2006-01-02 15:04:05"

func formatOrEmpty(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}
