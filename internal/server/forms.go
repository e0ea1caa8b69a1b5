package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type credentialsForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=72"`
}

type createUserForm struct {
	Username     string `validate:"required,max=64"`
	Password     string `validate:"required,max=72"`
	Premium      bool
	ExpiresHours *int `validate:"omitempty,min=-876000,max=876000"`
}

func readCredentials(r *http.Request) credentialsForm {
	return credentialsForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: strings.TrimSpace(r.PostFormValue("password")),
	}
}

// readCreateUser parses the admin form. An expires_hours value that is not an
// integer is ignored and the account gets no expiry.
func readCreateUser(r *http.Request) createUserForm {
	f := createUserForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: strings.TrimSpace(r.PostFormValue("password")),
		Premium:  r.PostFormValue("premium") != "",
	}
	if raw := strings.TrimSpace(r.PostFormValue("expires_hours")); raw != "" {
		if h, err := strconv.Atoi(raw); err == nil {
			f.ExpiresHours = &h
		}
	}
	return f
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validateForm runs struct validation and joins the failures into one error.
func validateForm(v *validator.Validate, form any) error {
	if err := v.Struct(form); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
