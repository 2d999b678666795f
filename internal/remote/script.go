// Package remote generates and interprets the shell scripts the fleet runs
// on managed hosts: deploy-path probing, permission setup, git hook
// installation, and the metrics/log probes. Script generation is pure, a
// function from configuration to deterministic text, so every generator is
// testable without a network.
package remote

import (
	"strings"
)

// Quote returns a shell-safe quoted form of s. Safe strings pass through
// unchanged; everything else is single-quoted with internal single quotes
// escaped.
func Quote(s string) string {
	safe := s != ""
	for _, c := range s {
		if !isShellSafe(c) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.ContainsRune("/_.-=:,@+", c)
}

// stepMarker prefixes the progress lines a fail-fast script echoes before
// each step, so the caller can tell how far execution got from stdout alone.
const stepMarker = "::step "

// Script assembles a POSIX sh script step by step. Arguments are quoted at
// append time; the emitted text contains no unescaped caller input.
type Script struct {
	failFast bool
	lines    []string
}

// NewScript returns a builder for a fail-fast script: the first failing
// command aborts the run.
func NewScript() *Script {
	return &Script{failFast: true}
}

// NewProbeScript returns a builder for a best-effort probe: failing tests
// are expected and do not abort the script.
func NewProbeScript() *Script {
	return &Script{}
}

// Step records a labelled command. In fail-fast scripts the label is echoed
// before the command runs; the last marker seen in stdout names the step
// that was executing when the script died.
func (s *Script) Step(label, program string, args ...string) *Script {
	if s.failFast {
		s.lines = append(s.lines, "echo "+Quote(stepMarker+label))
	}
	parts := []string{program}
	for _, a := range args {
		parts = append(parts, Quote(a))
	}
	s.lines = append(s.lines, strings.Join(parts, " "))
	return s
}

// Echo appends a plain labelled output line with a command-substituted value.
// The substitution expression is trusted builder input, never caller data.
func (s *Script) Echo(tag, expr string) *Script {
	s.lines = append(s.lines, `echo "`+tag+` $(`+expr+`)"`)
	return s
}

// Raw appends a literal line. Reserved for fixed builder text (heredocs,
// sleeps); caller-supplied values must go through Step or Echo.
func (s *Script) Raw(line string) *Script {
	s.lines = append(s.lines, line)
	return s
}

func (s *Script) String() string {
	var b strings.Builder
	if s.failFast {
		b.WriteString("set -e\n")
	}
	for _, l := range s.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if !s.failFast {
		// A trailing failed probe must not decide the exit status.
		b.WriteString("true\n")
	}
	return b.String()
}

// markers lists every step marker present in stdout, in order. The last one
// names the step that was executing when a fail-fast script died.
func markers(stdout string) []string {
	var out []string
	for _, line := range strings.Split(stdout, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), stepMarker); ok {
			out = append(out, rest)
		}
	}
	return out
}
