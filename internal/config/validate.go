package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg for structural and semantic errors.
// It returns all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ValidationError{{Field: "config", Message: err.Error()}}
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
	}

	if _, err := cfg.TimeoutDuration(); err != nil {
		errs = append(errs, ValidationError{Field: "timeout", Message: "is not a valid duration"})
	}
	for i, ext := range cfg.Extensions {
		if strings.ContainsAny(ext, `/\`) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("extensions[%d]", i),
				Message: fmt.Sprintf("%q is not a file extension", ext),
			})
		}
	}
	if cfg.Summary != "" && cfg.Question == "" {
		errs = append(errs, ValidationError{Field: "question", Message: "is required when summary is set"})
	}

	return errs
}

// fieldPath drops the root struct name: "Config.log.max_size_mb" -> "log.max_size_mb".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("%v is not a valid URL", fe.Value())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
