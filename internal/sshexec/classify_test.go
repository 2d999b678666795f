package sshexec

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyDial(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"connection refused", errors.New("connect: connection refused"), KindUnreachable},
		{"no route", errors.New("connect: no route to host"), KindUnreachable},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDial("h:22", tt.err); got.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestClassifyHandshake(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"bad credentials", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"), KindAuthFailed},
		{"permission denied", errors.New("permission denied (publickey)"), KindAuthFailed},
		{"protocol", errors.New("ssh: handshake failed: EOF"), KindHandshake},
		{"deadline", fmt.Errorf("handshake: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyHandshake("h:22", tt.err); got.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("connect failed: %w", &Error{Kind: KindAuthFailed, Op: "handshake"})
	if got := KindOf(wrapped); got != KindAuthFailed {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, KindAuthFailed)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindUnknown)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Kind: KindUnreachable, Op: "dial", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Error must unwrap to its cause")
	}
}
