// Package deploy runs one multi-step deployment against a host and returns
// a transcript. The per-host one-run-at-a-time rule is enforced by the
// registry, not here; this package only knows how to execute a sequence.
package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"helmsman/internal/remote"
	"helmsman/internal/sshexec"
)

// DefaultTimeout caps a whole deployment run.
const DefaultTimeout = 10 * time.Minute

// Request carries the deployment parameters for one host.
type Request struct {
	RepoPath     string `json:"repo_path"`
	RepoURL      string `json:"repo_url,omitempty"` // used when RepoPath has no checkout yet
	Branch       string `json:"branch,omitempty"`
	BuildCommand string `json:"build_command,omitempty"`
	PreDeploy    string `json:"pre_deploy,omitempty"`
	PostDeploy   string `json:"post_deploy,omitempty"`
}

// Outcome is the result of one run. The transcript keeps every step's
// captured output in execution order, including the partial output of a
// failed or timed-out step.
type Outcome struct {
	Success    bool
	Transcript string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Step is one labelled remote command in a deployment sequence.
type Step struct {
	Label   string
	Command string
}

// Orchestrator executes deployment sequences through a Runner.
type Orchestrator struct {
	runner  sshexec.Runner
	timeout time.Duration
}

func New(runner sshexec.Runner, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{runner: runner, timeout: timeout}
}

// Steps renders the step sequence for a request: optional pre-deploy, source
// sync (fetch when a checkout exists, clone otherwise), optional build,
// optional post-deploy. Exported so transcript ordering is testable as a
// pure function.
func Steps(req Request) []Step {
	var steps []Step
	if req.PreDeploy != "" {
		steps = append(steps, Step{"pre-deploy", req.PreDeploy})
	}
	steps = append(steps, Step{"sync-source", syncCommand(req)})
	if req.BuildCommand != "" {
		steps = append(steps, Step{"build", "cd " + remote.Quote(req.RepoPath) + " && " + req.BuildCommand})
	}
	if req.PostDeploy != "" {
		steps = append(steps, Step{"post-deploy", req.PostDeploy})
	}
	return steps
}

// syncCommand updates an existing checkout or clones a fresh one. When the
// path holds no repository and no URL was given, the remote script fails
// with a clear message instead of guessing.
func syncCommand(req Request) string {
	repo := remote.Quote(req.RepoPath)
	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	b := remote.Quote(branch)

	fetch := fmt.Sprintf(
		"git -C %s fetch --prune origin && git -C %s checkout %s && git -C %s reset --hard %s",
		repo, repo, b, repo, remote.Quote("origin/"+branch))
	if req.RepoURL == "" {
		return fmt.Sprintf("[ -d %s/.git ] || { echo 'no repository at %s and no repo_url configured' >&2; exit 1; }; %s",
			repo, strings.ReplaceAll(req.RepoPath, "'", ""), fetch)
	}
	clone := fmt.Sprintf("git clone --branch %s %s %s", b, remote.Quote(req.RepoURL), repo)
	return fmt.Sprintf("if [ -d %s/.git ]; then %s; else %s; fi", repo, fetch, clone)
}

// Run executes the sequence. The first failing step halts the run and the
// outcome keeps the transcript accumulated so far. The whole run is bounded
// by the orchestrator timeout; expiry marks the run failed with the
// executor's timeout classification and indeterminate remote effects.
func (o *Orchestrator) Run(ctx context.Context, target sshexec.Target, req Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out := Outcome{StartedAt: time.Now()}
	var transcript strings.Builder

	for _, st := range Steps(req) {
		fmt.Fprintf(&transcript, "==> %s\n", st.Label)
		res, err := o.runner.Run(ctx, target, st.Command)
		transcript.WriteString(res.Stdout)
		if res.Stderr != "" {
			transcript.WriteString(res.Stderr)
			if !strings.HasSuffix(res.Stderr, "\n") {
				transcript.WriteString("\n")
			}
		}
		if err != nil {
			out.Err = err
			break
		}
		if res.ExitCode != 0 {
			out.Err = fmt.Errorf("step %q exited %d", st.Label, res.ExitCode)
			break
		}
	}

	out.FinishedAt = time.Now()
	out.Transcript = transcript.String()
	out.Success = out.Err == nil
	return out
}
