package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"helmsman/internal/sshexec"
)

// Confidence tags, strongest first. Ranking is by tag; ties keep candidate
// declaration order.
const (
	TagExistingRepo    = "existing-repo"
	TagWritableWebRoot = "writable-web-root"
	TagHomeFallback    = "home-fallback"
)

var tagRank = map[string]int{
	TagExistingRepo:    0,
	TagWritableWebRoot: 1,
	TagHomeFallback:    2,
}

// Candidate is a proposed deployment directory.
type Candidate struct {
	Path       string `json:"path"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

// DetectorConfig lists the directories a probe checks, in declaration order.
type DetectorConfig struct {
	RepoDirs []string // checked for a .git marker
	WebRoots []string // checked for existence and writability
}

// DefaultDetectorConfig covers the common deployment conventions.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		RepoDirs: []string{
			"$HOME/app",
			"/var/www/app",
			"/srv/app",
			"/opt/app",
		},
		WebRoots: []string{
			"/var/www/html",
			"/var/www",
			"/srv/www",
			"/usr/share/nginx/html",
		},
	}
}

// Detector probes a host for deployment targets with one batched script, a
// single round trip regardless of how many candidates are configured.
type Detector struct {
	runner sshexec.Runner
	cfg    DetectorConfig
}

func NewDetector(runner sshexec.Runner, cfg DetectorConfig) *Detector {
	if len(cfg.RepoDirs) == 0 && len(cfg.WebRoots) == 0 {
		cfg = DefaultDetectorConfig()
	}
	return &Detector{runner: runner, cfg: cfg}
}

// ProbeScript renders the batched probe. Exported for tests; Detect is the
// operational entry point.
func (d *Detector) ProbeScript() string {
	s := NewProbeScript()
	for _, dir := range d.cfg.RepoDirs {
		p := pathExpr(dir)
		s.Raw(fmt.Sprintf(`[ -d %s/.git ] 2>/dev/null && echo "repo "%s`, p, p))
	}
	for _, dir := range d.cfg.WebRoots {
		p := pathExpr(dir)
		s.Raw(fmt.Sprintf(`[ -d %s ] && [ -w %s ] 2>/dev/null && echo "web "%s`, p, p, p))
	}
	s.Raw(`[ -n "$HOME" ] && [ -w "$HOME" ] && echo "home $HOME"`)
	return s.String()
}

// pathExpr quotes a candidate path while keeping a leading $HOME reference
// expandable on the remote side.
func pathExpr(dir string) string {
	if rest, ok := strings.CutPrefix(dir, "$HOME"); ok {
		return `"$HOME"` + Quote(rest)
	}
	return Quote(dir)
}

// Detect runs the probe and returns candidates ordered by confidence, ties
// broken by declaration order.
func (d *Detector) Detect(ctx context.Context, target sshexec.Target) ([]Candidate, error) {
	res, err := d.runner.Run(ctx, target, d.ProbeScript())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("path probe exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return parseCandidates(res.Stdout), nil
}

func parseCandidates(stdout string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(stdout, "\n") {
		tag, path, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok || path == "" {
			continue
		}
		switch tag {
		case "repo":
			out = append(out, Candidate{Path: path, Confidence: TagExistingRepo,
				Reason: "directory contains a .git repository"})
		case "web":
			out = append(out, Candidate{Path: path, Confidence: TagWritableWebRoot,
				Reason: "writable web root"})
		case "home":
			out = append(out, Candidate{Path: path, Confidence: TagHomeFallback,
				Reason: "writable home directory"})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return tagRank[out[i].Confidence] < tagRank[out[j].Confidence]
	})
	return out
}
