package keys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"helmsman/internal/fleet"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestGenerateEd25519(t *testing.T) {
	m := newTestManager(t)

	rec, err := m.Generate("deploy", "", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.Origin != OriginGenerated {
		t.Errorf("Origin = %s", rec.Origin)
	}
	if !strings.HasPrefix(rec.PublicKey, "ssh-ed25519 ") {
		t.Errorf("PublicKey = %q, want ed25519", rec.PublicKey)
	}
	if !strings.HasPrefix(rec.Fingerprint, "SHA256:") {
		t.Errorf("Fingerprint = %q", rec.Fingerprint)
	}

	info, err := os.Stat(m.PrivateKeyPath("deploy"))
	if err != nil {
		t.Fatalf("private key missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key mode = %o, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(m.PrivateKeyPath("deploy") + ".pub"); err != nil {
		t.Errorf("public key file missing: %v", err)
	}
}

func TestGenerateNameConflict(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Generate("deploy", "", 0); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	_, err := m.Generate("deploy", "", 0)
	if fleet.ClassOf(err) != fleet.ClassConflict {
		t.Errorf("duplicate name classified %s, want %s", fleet.ClassOf(err), fleet.ClassConflict)
	}
}

func TestGenerateValidation(t *testing.T) {
	m := newTestManager(t)
	tests := []struct {
		name string
		algo string
		bits int
	}{
		{"bad.name", "", 0},
		{"", "", 0},
		{"../escape", "", 0},
		{"ok", "dsa", 0},
		{"ok", "rsa", 1024},
	}
	for _, tt := range tests {
		if _, err := m.Generate(tt.name, tt.algo, tt.bits); fleet.ClassOf(err) != fleet.ClassValidation {
			t.Errorf("Generate(%q, %q, %d) classified %s, want validation",
				tt.name, tt.algo, tt.bits, fleet.ClassOf(err))
		}
	}
}

func TestImportRoundTrip(t *testing.T) {
	src := newTestManager(t)
	if _, err := src.Generate("orig", "", 0); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	m := newTestManager(t)
	rec, err := m.Import("copied", src.PrivateKeyPath("orig"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if rec.Origin != OriginImported {
		t.Errorf("Origin = %s", rec.Origin)
	}

	got, err := m.Get("copied")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Fingerprint != rec.Fingerprint {
		t.Errorf("fingerprint changed across Get: %q vs %q", got.Fingerprint, rec.Fingerprint)
	}
	// The source file must be untouched.
	if _, err := os.Stat(src.PrivateKeyPath("orig")); err != nil {
		t.Errorf("import must not move the original: %v", err)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	garbage := filepath.Join(t.TempDir(), "not-a-key")
	os.WriteFile(garbage, []byte("hello"), 0600)

	_, err := m.Import("bad", garbage)
	if fleet.ClassOf(err) != fleet.ClassValidation {
		t.Errorf("garbage import classified %s, want validation", fleet.ClassOf(err))
	}
	_, err = m.Import("missing", filepath.Join(t.TempDir(), "nope"))
	if fleet.ClassOf(err) != fleet.ClassValidation {
		t.Errorf("missing file classified %s, want validation", fleet.ClassOf(err))
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Generate("gone", "", 0); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if err := m.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(m.PrivateKeyPath("gone")); !os.IsNotExist(err) {
		t.Error("private key still on disk")
	}
	if _, err := m.Get("gone"); fleet.ClassOf(err) != fleet.ClassNotFound {
		t.Errorf("Get after delete classified %s, want not_found", fleet.ClassOf(err))
	}
	if err := m.Delete("gone"); fleet.ClassOf(err) != fleet.ClassNotFound {
		t.Errorf("second Delete classified %s, want not_found", fleet.ClassOf(err))
	}
}

func TestList(t *testing.T) {
	m := newTestManager(t)
	for _, name := range []string{"alpha", "beta"} {
		if _, err := m.Generate(name, "", 0); err != nil {
			t.Fatalf("Generate(%s): %v", name, err)
		}
	}

	recs, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Name != "alpha" || recs[1].Name != "beta" {
		t.Errorf("records = %v, want lexical order", []string{recs[0].Name, recs[1].Name})
	}
}
