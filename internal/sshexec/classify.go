package sshexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the transport-level failure taxonomy. Callers must be able to tell
// an unreachable host from bad credentials, so dial, handshake and auth
// failures never share a kind.
type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindAuthFailed  Kind = "auth-failed"
	KindHandshake   Kind = "handshake-error"
	KindTimeout     Kind = "timeout"
	KindUnknown     Kind = "unknown"
)

// Error is a classified transport/protocol failure.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ssh %s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the classification of err, or KindUnknown if it did not
// come from this package.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func errExit(code int, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr != "" {
		return fmt.Errorf("exit %d: %s", code, stderr)
	}
	return fmt.Errorf("exit %d", code)
}

func classifyDial(addr string, err error) *Error {
	kind := KindUnreachable
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: "dial " + addr, Cause: err}
}

// classifyHandshake splits the single error x/crypto/ssh returns for a
// failed handshake into auth-failed vs protocol trouble. The library offers
// no typed distinction, so this keys off the stable "unable to authenticate"
// message it has emitted since inception.
func classifyHandshake(addr string, err error) *Error {
	kind := KindHandshake
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "permission denied"):
		kind = KindAuthFailed
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			kind = KindTimeout
		}
	}
	return &Error{Kind: kind, Op: "handshake " + addr, Cause: err}
}
