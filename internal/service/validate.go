package service

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/auth"
)

// Input limits shared by the account, profile and event services.
// MaxPasswordLength counts bytes because bcrypt does.
const (
	MinPasswordLength = 6
	MaxPasswordLength = auth.MaxPasswordBytes
	MaxNameLength     = 100
	MaxNotesLength    = 2000
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole package.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report the json name ("loginStreak") rather than the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	// maxbytes=N bounds len(s), not the rune count max=N checks.
	mustRegister(v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	}))

	// Aliases keep the limits in one place. Structs tag fields with
	// "password", "name" or "notes" instead of repeating the numbers.
	v.RegisterAlias("password", fmt.Sprintf("min=%d,maxbytes=%d", MinPasswordLength, MaxPasswordLength))
	v.RegisterAlias("name", fmt.Sprintf("max=%d", MaxNameLength))
	v.RegisterAlias("notes", fmt.Sprintf("max=%d", MaxNotesLength))

	return v
}

func mustRegister(err error) {
	if err != nil {
		panic(fmt.Sprintf("registering validation: %v", err))
	}
}

// validateInput runs the struct's `validate` tags and converts the first
// failure into an apperror.ValidationFailed naming the offending field.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	label := capitalize(fe.Field())

	// ActualTag sees through aliases to the rule that failed.
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return "Please enter a valid email"
	case "min":
		if fe.Field() == "password" {
			return fmt.Sprintf("Password must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", label, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be %s bytes or fewer", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", label)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
