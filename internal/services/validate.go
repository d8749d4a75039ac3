package services

import (
	"errors"

	"duo-checkin-backend/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateStruct checks v against its validate tags and reports the first
// failing field as an invalid input error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		first := vErrs[0]
		return apperr.ErrInvalidInput.Withf("field %s failed rule %s", first.Field(), first.Tag())
	}
	return apperr.ErrInvalidInput.With(err)
}
