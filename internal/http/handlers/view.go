package handlers

import (
	"time"

	"github.com/brucki/mg-test/internal/domain/user"
)

// UserView is the gateway's JSON rendering of a user record.
type UserView struct {
	ID          *int64 `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name"`
	Gender      string `json:"gender"`
	GenderLabel string `json:"gender_label"`
	Birthdate   string `json:"birthdate,omitempty"`
	Age         *int   `json:"age,omitempty"`
	InsertedAt  string `json:"inserted_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func NewUserView(r user.Record, now time.Time) UserView {
	v := UserView{
		FirstName:   r.FirstName(),
		LastName:    r.LastName(),
		FullName:    r.FullName(),
		Gender:      string(r.Gender()),
		GenderLabel: r.GenderLabel(),
		Birthdate:   r.FormattedBirthdate(),
		InsertedAt:  r.FormattedInsertedAt(),
		UpdatedAt:   r.FormattedUpdatedAt(),
	}
	if id, ok := r.ID(); ok {
		v.ID = &id
	}
	if age, ok := r.Age(now); ok {
		v.Age = &age
	}
	return v
}

func NewUserViews(recs []user.Record, now time.Time) []UserView {
	out := make([]UserView, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewUserView(r, now))
	}
	return out
}
