package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/Jwl06/civicledger360/models"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so errors match what clients sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a *models.ValidationError.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(fe.Field(), "%s is required", fe.Field())
	case "min", "gte", "gt":
		return models.NewValidationError(fe.Field(), "%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return models.NewValidationError(fe.Field(), "%s must be at most %s", fe.Field(), fe.Param())
	default:
		return models.NewValidationError(fe.Field(), "%s failed %s validation", fe.Field(), fe.Tag())
	}
}
