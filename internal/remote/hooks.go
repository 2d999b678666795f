package remote

import (
	"context"
	"fmt"
	"path"
	"strings"

	"helmsman/internal/sshexec"
)

// heredocDelim terminates the hook-content heredoc. Content containing this
// line cannot be installed safely and is rejected up front.
const heredocDelim = "HELMSMAN_HOOK_EOF"

// Hook is one git hook to install: its name (pre-push, post-receive, ...)
// and the full script body.
type Hook struct {
	Name    string
	Content string
}

// HookOutcome reports one hook's installation independently of its
// siblings. A failed hook never rolls back hooks already written.
type HookOutcome struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Error     string `json:"error,omitempty"`
}

// HookInstaller writes hook scripts into a remote repository's .git/hooks,
// marks them executable, and reads each back to confirm the write.
type HookInstaller struct {
	runner sshexec.Runner
}

func NewHookInstaller(runner sshexec.Runner) *HookInstaller {
	return &HookInstaller{runner: runner}
}

// HookScript renders the install script for one hook. Exported for tests.
func HookScript(repoPath string, h Hook) string {
	hookPath := path.Join(repoPath, ".git", "hooks", h.Name)
	content := h.Content
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	s := NewScript()
	s.Raw("hook=" + Quote(hookPath))
	s.Raw(`cat > "$hook" <<'` + heredocDelim + `'`)
	s.Raw(strings.TrimSuffix(content, "\n"))
	s.Raw(heredocDelim)
	s.Raw(`chmod +x "$hook"`)
	s.Raw(`cat "$hook"`)
	return s.String()
}

// Install writes each hook with its own script invocation; outcomes are
// per-hook and independent.
func (hi *HookInstaller) Install(ctx context.Context, target sshexec.Target, repoPath string, hooks []Hook) []HookOutcome {
	outcomes := make([]HookOutcome, 0, len(hooks))
	for _, h := range hooks {
		outcomes = append(outcomes, hi.installOne(ctx, target, repoPath, h))
	}
	return outcomes
}

func (hi *HookInstaller) installOne(ctx context.Context, target sshexec.Target, repoPath string, h Hook) HookOutcome {
	out := HookOutcome{Name: h.Name}
	if strings.Contains(h.Content, heredocDelim) {
		out.Error = "hook content contains the heredoc delimiter"
		return out
	}

	res, err := hi.runner.Run(ctx, target, HookScript(repoPath, h))
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if res.ExitCode != 0 {
		out.Error = fmt.Sprintf("install exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		return out
	}

	// Read-back verification: the script's final cat must echo exactly what
	// was written.
	want := h.Content
	if !strings.HasSuffix(want, "\n") {
		want += "\n"
	}
	if res.Stdout != want {
		out.Error = "read-back mismatch: written hook does not match requested content"
		return out
	}
	out.Installed = true
	return out
}
