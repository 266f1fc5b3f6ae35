package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by the variable name the operator sets
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("env")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// settings is the raw, typed view of the environment before it is turned
// into an AppConfig. Struct tags carry the variable names and constraints.
type settings struct {
	Environment         string        `env:"APP_ENV" validate:"required"`
	ServerHost          string        `env:"SERVER_HOST" validate:"required"`
	ServerPort          int           `env:"PORT" validate:"min=1,max=65535"`
	ReadTimeout         time.Duration `env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout        time.Duration `env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout     time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat           string        `env:"LOG_FORMAT" validate:"oneof=json console"`
	CacheStore          string        `env:"CACHE_STORE" validate:"oneof=memory redis none"`
	CacheURL            string        `env:"CACHE_URL"`
	CacheNamespace      string        `env:"CACHE_NAMESPACE" validate:"required"`
	CacheMaxEntries     int           `env:"CACHE_MAX_ENTRIES" validate:"min=1"`
	CacheTTL            time.Duration `env:"CACHE_TTL" validate:"min=0"`
	JobQueueAdapter     string        `env:"JOB_QUEUE_ADAPTER" validate:"oneof=inline redis none"`
	JobQueueURL         string        `env:"JOB_QUEUE_URL"`
	JobQueueName        string        `env:"JOB_QUEUE_NAME" validate:"required,printascii"`
	JobQueueConcurrency int           `env:"JOB_QUEUE_CONCURRENCY" validate:"min=1,max=256"`
}

// validateSettings checks s against its struct tags and converts every
// violation into an InvalidValue error. sources maps the env tag of a field
// to the variable its value actually came from, when that differs.
func validateSettings(s *settings, raw map[string]string, sources map[string]string) []error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []error{err}
	}

	errs := make([]error, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := fe.Field()
		if src, ok := sources[field]; ok {
			field = src
		}
		value, ok := raw[field]
		if !ok {
			value = fmt.Sprint(fe.Value())
		}
		errs = append(errs, InvalidValue(field, value, describe(fe)))
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "printascii":
		return "must contain printable ASCII characters only"
	default:
		return fmt.Sprintf("validation failed on '%s' tag", fe.Tag())
	}
}
