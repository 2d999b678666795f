package remote

import (
	"context"
	"strings"
	"testing"

	"helmsman/internal/sshexec"
)

func TestProbeScriptExpandsHome(t *testing.T) {
	d := NewDetector(&fakeRunner{}, DetectorConfig{})
	script := d.ProbeScript()

	if !strings.Contains(script, `"$HOME"/app`) {
		t.Errorf("home-relative candidate must stay expandable:\n%s", script)
	}
	if strings.Contains(script, `'$HOME`) {
		t.Errorf("$HOME must not be single-quoted:\n%s", script)
	}
	if !strings.Contains(script, "/var/www/html") {
		t.Errorf("default web roots missing:\n%s", script)
	}
}

func TestDetectOrdersByConfidence(t *testing.T) {
	// Probe output arrives in script order: home fallback lines last, web
	// before that. Detect must reorder by confidence.
	runner := &fakeRunner{result: sshexec.Result{Stdout: "" +
		"web /var/www/html\n" +
		"home /home/deploy\n" +
		"repo /srv/app\n"}}
	d := NewDetector(runner, DetectorConfig{})

	cands, err := d.Detect(context.Background(), sshexec.Target{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []struct {
		path string
		conf string
	}{
		{"/srv/app", TagExistingRepo},
		{"/var/www/html", TagWritableWebRoot},
		{"/home/deploy", TagHomeFallback},
	}
	if len(cands) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(cands), len(want))
	}
	for i, w := range want {
		if cands[i].Path != w.path || cands[i].Confidence != w.conf {
			t.Errorf("candidate[%d] = %s/%s, want %s/%s",
				i, cands[i].Path, cands[i].Confidence, w.path, w.conf)
		}
	}
}

func TestDetectTiesKeepDeclarationOrder(t *testing.T) {
	runner := &fakeRunner{result: sshexec.Result{Stdout: "" +
		"web /var/www/html\n" +
		"web /srv/www\n"}}
	d := NewDetector(runner, DetectorConfig{})

	cands, err := d.Detect(context.Background(), sshexec.Target{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(cands) != 2 || cands[0].Path != "/var/www/html" || cands[1].Path != "/srv/www" {
		t.Errorf("ties must keep probe order, got %+v", cands)
	}
}

func TestDetectEmptyOutput(t *testing.T) {
	d := NewDetector(&fakeRunner{result: sshexec.Result{Stdout: ""}}, DetectorConfig{})
	cands, err := d.Detect(context.Background(), sshexec.Target{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("expected no candidates, got %+v", cands)
	}
}

func TestDetectProbeFailure(t *testing.T) {
	d := NewDetector(&fakeRunner{result: sshexec.Result{ExitCode: 127, Stderr: "sh: not found"}}, DetectorConfig{})
	if _, err := d.Detect(context.Background(), sshexec.Target{}); err == nil {
		t.Fatal("expected error on non-zero probe exit")
	}
}
