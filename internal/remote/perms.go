package remote

import (
	"context"
	"fmt"
	"strings"

	"helmsman/internal/sshexec"
)

// PermissionSpec describes the ownership and mode to apply to a remote path.
type PermissionSpec struct {
	Owner     string
	Group     string
	Mode      string // octal, e.g. "755"
	Recursive bool
}

// PermResult reports how far a permission script got. Steps already applied
// when a later step failed are listed in Applied: the reporting contract is
// all-or-nothing, the execution contract is not, and callers must surface
// partial effects rather than assume rollback.
type PermResult struct {
	Applied    []string `json:"applied"`
	FailedStep string   `json:"failed_step,omitempty"`
	Stderr     string   `json:"stderr,omitempty"`
}

// PermissionSetup applies ownership then mode with one fail-fast script.
type PermissionSetup struct {
	runner sshexec.Runner
}

func NewPermissionSetup(runner sshexec.Runner) *PermissionSetup {
	return &PermissionSetup{runner: runner}
}

// PermScript renders the fail-fast chown/chmod script. Exported for tests.
func PermScript(path string, spec PermissionSpec) string {
	s := NewScript()
	flag := []string{}
	if spec.Recursive {
		flag = append(flag, "-R")
	}
	if spec.Owner != "" {
		owner := spec.Owner
		if spec.Group != "" {
			owner += ":" + spec.Group
		}
		s.Step("chown", "chown", append(flag, owner, path)...)
	}
	if spec.Mode != "" {
		s.Step("chmod", "chmod", append(flag, spec.Mode, path)...)
	}
	return s.String()
}

// Apply runs the script. A non-zero exit reports failure for the whole call
// even when earlier sub-steps already mutated remote state; PermResult says
// which ones did.
func (p *PermissionSetup) Apply(ctx context.Context, target sshexec.Target, path string, spec PermissionSpec) (PermResult, error) {
	if spec.Owner == "" && spec.Mode == "" {
		return PermResult{}, fmt.Errorf("permission spec is empty")
	}
	res, err := p.runner.Run(ctx, target, PermScript(path, spec))
	if err != nil {
		return PermResult{}, err
	}

	failed := ""
	var applied []string
	steps := markers(res.Stdout)
	if res.ExitCode != 0 && len(steps) > 0 {
		// The last marker names the step that was executing; everything
		// before it completed.
		failed = steps[len(steps)-1]
		applied = steps[:len(steps)-1]
	} else if res.ExitCode == 0 {
		applied = steps
	}

	out := PermResult{Applied: applied, FailedStep: failed, Stderr: strings.TrimSpace(res.Stderr)}
	if res.ExitCode != 0 {
		return out, fmt.Errorf("step %q exited %d: %s", failed, res.ExitCode, out.Stderr)
	}
	return out, nil
}
