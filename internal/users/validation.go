package users

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are rejected
// instead of being silently truncated.
const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned when a create or update payload fails validation.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "users: validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

var fieldLabels = map[string]string{
	"email":        "Email",
	"phoneNumber":  "Phone number",
	"password":     "Password",
	"companyEmail": "Company email",
	"officeEmail":  "Office email",
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return label(field) + " is required"
	case "email":
		return label(field) + " is invalid"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label(field), param)
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", label(field), maxPasswordBytes)
	default:
		return label(field) + " is invalid"
	}
}

func validateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe.Field(), fe.Tag(), fe.Param())})
	}
	return out
}

// fieldChecker accumulates per-field validator.Var results for payloads whose
// fields are optional pointers.
type fieldChecker struct {
	errs FieldErrors
}

func (c *fieldChecker) check(field string, value any, tag string) {
	err := validate.Var(value, tag)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		c.errs = append(c.errs, FieldError{Field: field, Message: message(field, verrs[0].Tag(), verrs[0].Param())})
		return
	}
	c.errs = append(c.errs, FieldError{Field: field, Message: label(field) + " is invalid"})
}

func (c *fieldChecker) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}
