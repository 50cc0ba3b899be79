package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

var phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)

// NewValidator builds the shared validator instance with the custom phone
// rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError converts a validator error into the advisory 400 response
// carrying an ordered, human-readable violation list. Messages are looked up
// by "Field.tag"; unknown violations fall back to a generic message so new
// tags never panic the translation.
func validationError(err error, messages map[string]string) *appErrors.Error {
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	details := make([]string, 0, len(violations))
	for _, v := range violations {
		key := v.Field() + "." + v.Tag()
		if msg, ok := messages[key]; ok {
			details = append(details, msg)
			continue
		}
		details = append(details, fmt.Sprintf("%s is invalid", strings.ToLower(v.Field())))
	}

	return appErrors.WithDetails(appErrors.ErrValidation, details)
}
