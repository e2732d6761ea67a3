package input

import (
	"errors"
	"fmt"
)

var (
	ErrNoSources        = errors.New("no enabled input sources")
	ErrUnknownKind      = errors.New("unknown source kind")
	ErrUnknownBinding   = errors.New("unsupported binding")
	ErrInvalidTrigger   = errors.New("invalid trigger")
	ErrInvalidThreshold = errors.New("invalid thresholds")
	ErrDuplicateName    = errors.New("duplicate source name")
)

// ConfigError reports an input source that cannot be bound to hardware.
// It is fatal at startup.
type ConfigError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %q: %s", e.Source, e.Reason)
	}
	if e.Reason == "" {
		return fmt.Sprintf("source %q: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("source %q: %s: %v", e.Source, e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
