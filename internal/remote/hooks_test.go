package remote

import (
	"context"
	"strings"
	"testing"

	"helmsman/internal/sshexec"
)

func TestHookScript(t *testing.T) {
	script := HookScript("/srv/app", Hook{Name: "post-receive", Content: "#!/bin/sh\necho deployed"})

	for _, want := range []string{
		"hook=/srv/app/.git/hooks/post-receive",
		`cat > "$hook" <<'HELMSMAN_HOOK_EOF'`,
		"#!/bin/sh\necho deployed\nHELMSMAN_HOOK_EOF",
		`chmod +x "$hook"`,
		`cat "$hook"`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestInstallReadBackVerified(t *testing.T) {
	content := "#!/bin/sh\necho deployed\n"
	runner := &fakeRunner{result: sshexec.Result{Stdout: content}}
	hi := NewHookInstaller(runner)

	outcomes := hi.Install(context.Background(), sshexec.Target{}, "/srv/app",
		[]Hook{{Name: "post-receive", Content: content}})
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes", len(outcomes))
	}
	if !outcomes[0].Installed || outcomes[0].Error != "" {
		t.Errorf("outcome = %+v, want installed", outcomes[0])
	}
}

func TestInstallReadBackMismatch(t *testing.T) {
	runner := &fakeRunner{result: sshexec.Result{Stdout: "#!/bin/sh\nsomething else\n"}}
	hi := NewHookInstaller(runner)

	outcomes := hi.Install(context.Background(), sshexec.Target{}, "/srv/app",
		[]Hook{{Name: "pre-push", Content: "#!/bin/sh\necho ok\n"}})
	if outcomes[0].Installed {
		t.Error("mismatched read-back must not report installed")
	}
	if !strings.Contains(outcomes[0].Error, "read-back mismatch") {
		t.Errorf("Error = %q", outcomes[0].Error)
	}
}

func TestInstallRejectsDelimiterInContent(t *testing.T) {
	runner := &fakeRunner{}
	hi := NewHookInstaller(runner)

	outcomes := hi.Install(context.Background(), sshexec.Target{}, "/srv/app",
		[]Hook{{Name: "pre-push", Content: "echo HELMSMAN_HOOK_EOF\n"}})
	if outcomes[0].Installed {
		t.Error("content containing the delimiter must be rejected")
	}
	if len(runner.commands) != 0 {
		t.Error("rejected hook must not reach the host")
	}
}

func TestInstallOutcomesIndependent(t *testing.T) {
	// First hook fails remotely, second succeeds; the failure must not stop
	// or taint the second.
	good := "#!/bin/sh\necho ok\n"
	runner := &fakeRunner{fn: func(command string) (sshexec.Result, error) {
		if strings.Contains(command, "pre-push") {
			return sshexec.Result{ExitCode: 1, Stderr: "read-only file system"}, nil
		}
		return sshexec.Result{Stdout: good}, nil
	}}
	hi := NewHookInstaller(runner)

	outcomes := hi.Install(context.Background(), sshexec.Target{}, "/srv/app", []Hook{
		{Name: "pre-push", Content: good},
		{Name: "post-receive", Content: good},
	})
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Installed {
		t.Error("first hook should have failed")
	}
	if !outcomes[1].Installed {
		t.Errorf("second hook should have installed, got %+v", outcomes[1])
	}
}

func TestInstallAppendsTrailingNewline(t *testing.T) {
	// Content without a trailing newline is normalized; the read-back check
	// must expect the normalized form.
	runner := &fakeRunner{result: sshexec.Result{Stdout: "echo hi\n"}}
	hi := NewHookInstaller(runner)

	outcomes := hi.Install(context.Background(), sshexec.Target{}, "/srv/app",
		[]Hook{{Name: "post-update", Content: "echo hi"}})
	if !outcomes[0].Installed {
		t.Errorf("outcome = %+v, want installed", outcomes[0])
	}
}
