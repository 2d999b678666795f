package sshexec

import (
	"context"
	"strings"
	"time"
)

// probeCommand is the trivial command a connection test runs to confirm a
// working shell. Its two output lines give the kernel and login shell.
const probeCommand = `uname -sr; echo "$SHELL"`

// Outcome is the result of one connection test. Latest-wins per host; the
// registry keeps only the most recent one.
type Outcome struct {
	Success bool
	Latency time.Duration
	OS      string
	Shell   string
	Kind    Kind // set when Success is false
	Err     error
}

// Tester classifies reachability and auth for a target. The underlying
// runner performs connect, auth and probe as distinct steps, so a failed
// test carries exactly one of the unreachable / auth-failed /
// handshake-error / timeout / unknown kinds and callers never have to guess
// which stage fell over.
type Tester struct {
	runner  Runner
	timeout time.Duration
}

func NewTester(runner Runner, timeout time.Duration) *Tester {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &Tester{runner: runner, timeout: timeout}
}

func (t *Tester) Test(ctx context.Context, target Target) Outcome {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	res, err := t.runner.Run(ctx, target, probeCommand)
	latency := time.Since(start)

	if err != nil {
		return Outcome{Latency: latency, Kind: KindOf(err), Err: err}
	}
	if res.ExitCode != 0 {
		return Outcome{Latency: latency, Kind: KindUnknown,
			Err: &Error{Kind: KindUnknown, Op: "probe", Cause: errExit(res.ExitCode, res.Stderr)}}
	}

	out := Outcome{Success: true, Latency: latency}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) > 0 {
		out.OS = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		out.Shell = strings.TrimSpace(lines[1])
	}
	return out
}
