package simulation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig matches every *ConfigError through errors.Is.
	ErrInvalidConfig = errors.New("invalid simulation configuration")
	// ErrNotFound is returned by the repository for an unknown run id.
	ErrNotFound = errors.New("simulation run not found")
)

// ConfigError reports a rejected simulation parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func newConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
