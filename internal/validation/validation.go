package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError describes a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateStruct runs struct-tag validation and returns per-field errors
func ValidateStruct(s interface{}) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(invalid))
	for _, fe := range invalid {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return fieldErrors
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ValidateEmail checks basic email shape
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return errors.New("invalid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum password policy
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(password) > 128 {
		return errors.New("password must be at most 128 characters")
	}
	return nil
}

// ValidateName checks a person or display name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > 100 {
		return errors.New("name must be at most 100 characters")
	}
	return nil
}

// ValidateYear checks a birth or death year when present
func ValidateYear(year *int) error {
	if year == nil {
		return nil
	}
	current := time.Now().Year()
	if *year < 1000 || *year > current {
		return fmt.Errorf("year must be between 1000 and %d", current)
	}
	return nil
}

// ValidateGeneration checks the generation number
func ValidateGeneration(generation int) error {
	if generation < 1 {
		return errors.New("generation must be at least 1")
	}
	return nil
}
