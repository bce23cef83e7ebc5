package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

var validate = validator.New()

// Validate checks a request DTO and returns a VALIDATION_FAILED error whose
// details map each failing field to the rule it broke.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid request", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[lowerFirst(fe.Field())] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid request", details)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
