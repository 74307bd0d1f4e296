package model

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel behind every fatal configuration problem.
// Callers can test with errors.Is(err, model.ErrConfiguration).
var ErrConfiguration = errors.New("configuration error")

// ConfigError describes a structural problem that makes the simulation economics
// meaningless if we continued: missing keys, invalid bounds, badly shaped day-ahead actions.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// NewConfigError is a convenience constructor using fmt-style formatting for the message.
func NewConfigError(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
