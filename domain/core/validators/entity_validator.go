package validators

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "tasknote-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Length tags alone accept whitespace-only titles; notblank closes that.
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateEntity checks an entity's field invariants and returns the
// violations as data. Read paths never call this; it guards create/update.
func ValidateEntity(entity any) []pkgerrors.FieldError {
	err := validate.Struct(entity)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []pkgerrors.FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]pkgerrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, pkgerrors.FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return fields
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "excludesall":
		return "must not contain the reserved characters '+' or '-'"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
