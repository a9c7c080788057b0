package user

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Input is the editable form of a user as submitted by a client, using the
// wire field names. Validate mirrors the constraints the UI enforces.
type Input struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" validate:"required,min=2,max=50"`
	Gender    string `json:"gender" validate:"required,oneof=male female"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02,past_date"`
}

var fieldLabels = map[string]string{
	KeyFirstName: "First name",
	KeyLastName:  "Last name",
	KeyGender:    "Gender",
	KeyBirthdate: "Birth date",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate

	// today is swapped in tests
	today = func() time.Time { return dateOnly(time.Now()) }
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return sf.Name
			}
			return name
		})

		_ = v.RegisterValidation("past_date", func(fl validator.FieldLevel) bool {
			d, err := time.Parse(DateLayout, fl.Field().String())
			if err != nil {
				return false
			}
			return d.Before(today())
		})

		validate = v
	})
	return validate
}

// normalized trims every field. Validate and Draft both work on it, so the
// rules hold for the values actually sent upstream.
func (in Input) normalized() Input {
	return Input{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Gender:    strings.TrimSpace(in.Gender),
		Birthdate: strings.TrimSpace(in.Birthdate),
	}
}

// Validate returns nil or a *ValidationError keyed by wire field name.
func (in Input) Validate() error {
	err := validatorInstance().Struct(in.normalized())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], validationMessage(fe.Field(), fe.Tag(), fe.Param()))
	}
	return &ValidationError{Fields: fields}
}

// Draft converts a validated input. The birthdate is dropped when it does not parse.
func (in Input) Draft() Draft {
	in = in.normalized()
	d := Draft{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Gender:    Gender(in.Gender),
	}
	if b, err := time.Parse(DateLayout, in.Birthdate); err == nil {
		d.Birthdate = &b
	}
	return d
}

func validationMessage(field, rule, param string) string {
	label := fieldLabels[field]
	if label == "" {
		label = field
	}

	switch rule {
	case "required":
		return label + " is required"
	case "min":
		return label + " must be at least " + param + " characters long"
	case "max":
		return label + " cannot be longer than " + param + " characters"
	case "oneof":
		return label + ` must be either "male" or "female"`
	case "datetime":
		return label + " must be a valid date (YYYY-MM-DD)"
	case "past_date":
		return label + " must be in the past"
	default:
		return label + " failed " + rule + " validation"
	}
}
