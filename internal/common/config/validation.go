package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Validate runs struct tag validation over a loaded config.
// Every failing field is returned as part of a single multierror.
func Validate(config interface{}) error {
	err := validator.New().Struct(config)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.WithStack(err)
	}
	var result *multierror.Error
	for _, fieldErr := range validationErrors {
		result = multierror.Append(result, errors.New(describe(fieldErr)))
	}
	return result.ErrorOrNil()
}

func LogValidationErrors(err error) {
	if err == nil {
		return
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, err := range validationErrors {
			log.Errorf("ConfigError: %s", describe(err))
		}
		return
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, err := range merr.Errors {
			log.Errorf("ConfigError: %s", err)
		}
		return
	}
	log.Errorf("ConfigError: %s", err)
}

func describe(err validator.FieldError) string {
	fieldName := stripPrefix(err.Namespace())
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required but was not found", fieldName)
	default:
		return fmt.Sprintf("Field %s has invalid value %v: %s", fieldName, err.Value(), err.Tag())
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
