package handlers

import (
	"testing"
	"time"

	"github.com/brucki/mg-test/internal/domain/user"
)

func TestNewUserView(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	bd := time.Date(1990, 6, 16, 0, 0, 0, 0, time.UTC)

	v := NewUserView(user.New(user.Draft{ID: 1, FirstName: "Jan", LastName: "Kowalski", Gender: "other", Birthdate: &bd}), now)

	if v.ID == nil || *v.ID != 1 {
		t.Fatalf("expected id 1, got %v", v.ID)
	}
	if v.Age == nil || *v.Age != 33 {
		t.Fatalf("expected age 33 the day before the birthday, got %v", v.Age)
	}
	if v.GenderLabel != "Other" || v.Birthdate != "1990-06-16" {
		t.Fatalf("unexpected view: %+v", v)
	}

	empty := NewUserView(user.New(user.Draft{}), now)
	if empty.ID != nil || empty.Age != nil || empty.Birthdate != "" {
		t.Fatalf("expected absent fields to stay empty, got %+v", empty)
	}
}
