package sshexec

import (
	"context"
	"testing"
	"time"
)

type fakeRunner struct {
	result Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, _ Target, _ string) (Result, error) {
	return f.result, f.err
}

func TestTesterSuccess(t *testing.T) {
	runner := &fakeRunner{result: Result{Stdout: "Linux 6.1.0-13-amd64\n/bin/bash\n"}}
	out := NewTester(runner, time.Second).Test(context.Background(), Target{})

	if !out.Success {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if out.OS != "Linux 6.1.0-13-amd64" {
		t.Errorf("OS = %q", out.OS)
	}
	if out.Shell != "/bin/bash" {
		t.Errorf("Shell = %q", out.Shell)
	}
	if out.Latency <= 0 {
		t.Error("latency must be measured")
	}
}

func TestTesterTransportFailure(t *testing.T) {
	runner := &fakeRunner{err: &Error{Kind: KindAuthFailed, Op: "handshake"}}
	out := NewTester(runner, time.Second).Test(context.Background(), Target{})

	if out.Success {
		t.Fatal("failed transport must not report success")
	}
	if out.Kind != KindAuthFailed {
		t.Errorf("Kind = %s, want %s", out.Kind, KindAuthFailed)
	}
}

func TestTesterProbeExitFailure(t *testing.T) {
	runner := &fakeRunner{result: Result{ExitCode: 127, Stderr: "sh: uname: not found"}}
	out := NewTester(runner, time.Second).Test(context.Background(), Target{})

	if out.Success {
		t.Fatal("non-zero probe exit must not report success")
	}
	if out.Kind != KindUnknown {
		t.Errorf("Kind = %s, want %s", out.Kind, KindUnknown)
	}
	if out.Err == nil {
		t.Error("Err must carry the probe failure")
	}
}
