package deploy

import (
	"context"
	"strings"
	"testing"
	"time"

	"helmsman/internal/sshexec"
)

type fakeRunner struct {
	commands []string
	fn       func(command string) (sshexec.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, _ sshexec.Target, command string) (sshexec.Result, error) {
	f.commands = append(f.commands, command)
	if f.fn != nil {
		return f.fn(command)
	}
	return sshexec.Result{}, nil
}

func TestStepsOrdering(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "full sequence",
			req: Request{
				RepoPath:     "/srv/app",
				PreDeploy:    "systemctl stop app",
				BuildCommand: "make build",
				PostDeploy:   "systemctl start app",
			},
			want: []string{"pre-deploy", "sync-source", "build", "post-deploy"},
		},
		{
			name: "sync only",
			req:  Request{RepoPath: "/srv/app"},
			want: []string{"sync-source"},
		},
		{
			name: "build without hooks",
			req:  Request{RepoPath: "/srv/app", BuildCommand: "npm ci"},
			want: []string{"sync-source", "build"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := Steps(tt.req)
			if len(steps) != len(tt.want) {
				t.Fatalf("got %d steps, want %d", len(steps), len(tt.want))
			}
			for i, w := range tt.want {
				if steps[i].Label != w {
					t.Errorf("step[%d] = %s, want %s", i, steps[i].Label, w)
				}
			}
		})
	}
}

func TestSyncCommandFetchOrClone(t *testing.T) {
	cmd := syncCommand(Request{RepoPath: "/srv/app", RepoURL: "git@example.com:a/b.git", Branch: "release"})
	for _, want := range []string{
		"if [ -d /srv/app/.git ]",
		"git -C /srv/app fetch --prune origin",
		"git -C /srv/app checkout release",
		"reset --hard origin/release",
		"git clone --branch release git@example.com:a/b.git /srv/app",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("sync command missing %q:\n%s", want, cmd)
		}
	}
}

func TestSyncCommandQuotesHostileBranch(t *testing.T) {
	// A branch name carrying shell metacharacters must reach git as one
	// argument, never as a second command.
	steps := Steps(Request{RepoPath: "/srv/app", Branch: "main; touch /tmp/pwned"})
	var sync string
	for _, st := range steps {
		if st.Label == "sync-source" {
			sync = st.Command
		}
	}
	if sync == "" {
		t.Fatal("sync-source step missing")
	}
	if strings.Contains(sync, "origin/main; touch") {
		t.Errorf("branch interpolated unquoted:\n%s", sync)
	}
	for _, want := range []string{
		`checkout 'main; touch /tmp/pwned'`,
		`reset --hard 'origin/main; touch /tmp/pwned'`,
	} {
		if !strings.Contains(sync, want) {
			t.Errorf("sync command missing %q:\n%s", want, sync)
		}
	}
}

func TestSyncCommandDefaultsBranch(t *testing.T) {
	cmd := syncCommand(Request{RepoPath: "/srv/app"})
	if !strings.Contains(cmd, "origin/main") {
		t.Errorf("branch must default to main:\n%s", cmd)
	}
}

func TestSyncCommandNoRepoNoURL(t *testing.T) {
	cmd := syncCommand(Request{RepoPath: "/srv/app"})
	if !strings.Contains(cmd, "no repo_url configured") {
		t.Errorf("missing-checkout guard absent:\n%s", cmd)
	}
	if !strings.Contains(cmd, "exit 1") {
		t.Errorf("guard must fail the step:\n%s", cmd)
	}
}

func TestRunTranscriptOrder(t *testing.T) {
	runner := &fakeRunner{fn: func(command string) (sshexec.Result, error) {
		return sshexec.Result{Stdout: "ran: " + command[:4] + "\n"}, nil
	}}
	o := New(runner, time.Minute)

	out := o.Run(context.Background(), sshexec.Target{}, Request{
		RepoPath:   "/srv/app",
		PreDeploy:  "true",
		PostDeploy: "true",
	})
	if !out.Success {
		t.Fatalf("run failed: %v", out.Err)
	}
	pre := strings.Index(out.Transcript, "==> pre-deploy")
	sync := strings.Index(out.Transcript, "==> sync-source")
	post := strings.Index(out.Transcript, "==> post-deploy")
	if pre == -1 || sync == -1 || post == -1 || !(pre < sync && sync < post) {
		t.Errorf("transcript out of order:\n%s", out.Transcript)
	}
	if out.FinishedAt.Before(out.StartedAt) {
		t.Error("timestamps inverted")
	}
}

func TestRunHaltsOnFirstFailure(t *testing.T) {
	runner := &fakeRunner{fn: func(command string) (sshexec.Result, error) {
		if strings.Contains(command, "git") {
			return sshexec.Result{ExitCode: 128, Stderr: "fatal: not a git repository\n"}, nil
		}
		return sshexec.Result{}, nil
	}}
	o := New(runner, time.Minute)

	out := o.Run(context.Background(), sshexec.Target{}, Request{
		RepoPath:     "/srv/app",
		BuildCommand: "make",
	})
	if out.Success {
		t.Fatal("run must fail when a step exits non-zero")
	}
	if !strings.Contains(out.Err.Error(), `step "sync-source" exited 128`) {
		t.Errorf("Err = %v", out.Err)
	}
	if strings.Contains(out.Transcript, "==> build") {
		t.Error("build must not run after sync failed")
	}
	if !strings.Contains(out.Transcript, "fatal: not a git repository") {
		t.Error("failed step's stderr must be in the transcript")
	}
	if len(runner.commands) != 1 {
		t.Errorf("ran %d commands, want 1", len(runner.commands))
	}
}

func TestRunKeepsPartialTranscriptOnTransportError(t *testing.T) {
	runner := &fakeRunner{fn: func(command string) (sshexec.Result, error) {
		return sshexec.Result{Stdout: "partial output\n", ExitCode: -1},
			&sshexec.Error{Kind: sshexec.KindTimeout, Op: "run", Cause: context.DeadlineExceeded}
	}}
	o := New(runner, time.Minute)

	out := o.Run(context.Background(), sshexec.Target{}, Request{RepoPath: "/srv/app"})
	if out.Success {
		t.Fatal("expected failure")
	}
	if sshexec.KindOf(out.Err) != sshexec.KindTimeout {
		t.Errorf("error kind = %s, want timeout", sshexec.KindOf(out.Err))
	}
	if !strings.Contains(out.Transcript, "partial output") {
		t.Error("partial output of the dying step must be preserved")
	}
}
