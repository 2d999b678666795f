package fleet

import (
	"errors"
	"fmt"
)

// Classification routes a failure to the right user message and retry policy.
type Classification string

const (
	ClassValidation      Classification = "validation"
	ClassNotFound        Classification = "not_found"
	ClassConflict        Classification = "conflict"
	ClassConnectivity    Classification = "connectivity"
	ClassAuth            Classification = "auth"
	ClassRemoteExecution Classification = "remote_execution"
	ClassPartialEffect   Classification = "partial_effect"
	ClassTimeout         Classification = "timeout"
	ClassInternal        Classification = "internal"
)

// Error is the classified error every public operation returns. Entity names
// the host, key or deployment the failure concerns so callers can attach the
// message to the right record.
type Error struct {
	Class   Classification
	Entity  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s: %s", e.Class, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Errorf builds a classified error without a cause.
func Errorf(class Classification, entity, format string, args ...any) *Error {
	return &Error{Class: class, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification and entity to an underlying error. If err is
// already classified its class is preserved and only the entity is filled in
// when missing, so the executor's classification survives the trip up.
func Wrap(class Classification, entity string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Entity == "" && entity != "" {
			return &Error{Class: ce.Class, Entity: entity, Message: ce.Message, Cause: ce.Cause}
		}
		return ce
	}
	return &Error{Class: class, Entity: entity, Message: err.Error(), Cause: err}
}

// ClassOf extracts the classification from err, defaulting to internal for
// anything that escaped the taxonomy.
func ClassOf(err error) Classification {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassInternal
}
