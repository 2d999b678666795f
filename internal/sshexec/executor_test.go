package sshexec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClientConfigClassifiesCredentialFailures(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "not-a-key")
	if err := os.WriteFile(garbage, []byte("hello"), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	tests := []struct {
		name   string
		target Target
	}{
		{"no credentials", Target{User: "deploy"}},
		{"unreadable key", Target{User: "deploy", KeyPath: filepath.Join(t.TempDir(), "missing")}},
		{"unparseable key", Target{User: "deploy", KeyPath: garbage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clientConfig(tt.target)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != KindAuthFailed {
				t.Errorf("KindOf = %s, want %s", got, KindAuthFailed)
			}
		})
	}
}

func TestClientConfigKeyFirstThenPassword(t *testing.T) {
	cfg, err := clientConfig(Target{User: "deploy", Password: "hunter2"})
	if err != nil {
		t.Fatalf("clientConfig: %v", err)
	}
	if cfg.User != "deploy" || len(cfg.Auth) != 1 {
		t.Errorf("config = %+v", cfg)
	}
}
