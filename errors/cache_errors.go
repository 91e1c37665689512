// errors/cache_errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrCacheMiss            = errors.New("cache miss")
	ErrEphemeralUnavailable = errors.New("ephemeral cache tier unavailable")
	ErrDurableRead          = errors.New("durable cache read failed")
	ErrDurableWrite         = errors.New("durable cache write failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrCorruptPayload       = errors.New("corrupt cached payload")
)

// TransientStoreError describes a failure of the ephemeral tier. It is always
// absorbed by the store and logged; callers only ever observe a miss.
type TransientStoreError struct {
	Op  string
	Key string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("ephemeral %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

func (e *TransientStoreError) Is(target error) bool { return target == ErrEphemeralUnavailable }

// DurableReadError is returned by the durable tier when a query fails.
// The coordinator recovers from it by falling through to compute.
type DurableReadError struct {
	Op  string
	Err error
}

func (e *DurableReadError) Error() string {
	return fmt.Sprintf("durable %s: %v", e.Op, e.Err)
}

func (e *DurableReadError) Unwrap() error { return e.Err }

func (e *DurableReadError) Is(target error) bool { return target == ErrDurableRead }

// DurableWriteError is fatal when it follows a successful compute: the
// computed result could not be recorded in the tier of record.
type DurableWriteError struct {
	Op  string
	Key string
	Err error
}

func (e *DurableWriteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("durable %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("durable %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *DurableWriteError) Unwrap() error { return e.Err }

func (e *DurableWriteError) Is(target error) bool { return target == ErrDurableWrite }

// ConfigurationError is raised once, at initialization, for missing or
// invalid connection settings.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "invalid configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }
