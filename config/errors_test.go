package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "missing variable without reason",
			err:     MissingRequiredVariable("CACHE_URL", ""),
			wantMsg: "missing_required_variable: CACHE_URL is required",
		},
		{
			name:    "missing variable with reason",
			err:     MissingRequiredVariable("CACHE_URL", "when CACHE_STORE=redis"),
			wantMsg: "missing_required_variable: CACHE_URL is required when CACHE_STORE=redis",
		},
		{
			name:    "invalid value without reason",
			err:     InvalidValue("LOG_LEVEL", "loud", ""),
			wantMsg: `invalid_value: LOG_LEVEL has invalid value "loud"`,
		},
		{
			name:    "invalid value with reason",
			err:     InvalidValue("LOG_LEVEL", "loud", "must be one of: debug, info"),
			wantMsg: `invalid_value: LOG_LEVEL has invalid value "loud": must be one of: debug, info`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", MissingRequiredVariable("A", ""), ErrMissingRequiredVariable, true},
		{"different kind", InvalidValue("A", "x", ""), ErrMissingRequiredVariable, false},
		{"wrapped", fmt.Errorf("startup: %w", InvalidValue("A", "x", "")), ErrInvalidValue, true},
		{"combined", multierr.Combine(errors.New("other"), InvalidValue("A", "x", "")), ErrInvalidValue, true},
		{"plain error", errors.New("invalid_value"), ErrInvalidValue, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestFields(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, Fields(nil))
	})

	t.Run("single error", func(t *testing.T) {
		assert.Equal(t, []string{"PORT"}, Fields(InvalidValue("PORT", "x", "")))
	})

	t.Run("combined errors keep order and skip foreign errors", func(t *testing.T) {
		err := multierr.Combine(
			InvalidValue("LOG_LEVEL", "x", ""),
			errors.New("unrelated"),
			MissingRequiredVariable("CACHE_URL", ""),
		)
		assert.Equal(t, []string{"LOG_LEVEL", "CACHE_URL"}, Fields(err))
	})
}
