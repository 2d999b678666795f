// Package keys manages the SSH key material the fleet authenticates with:
// generation, import, listing and deletion. Private keys live on disk with
// owner-only permissions; metadata sits alongside in a JSON sidecar. Keys
// have a lifecycle independent of hosts: hosts reference them by path and
// never own them.
package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"helmsman/internal/fleet"
)

// Origin records how a key entered the manager.
type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginImported  Origin = "imported"
)

// Record is the public metadata for one managed key. Private material never
// leaves the key directory.
type Record struct {
	Name        string    `json:"name"`
	PublicKey   string    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Origin      Origin    `json:"origin"`
}

// PrivateKeyPath returns where the manager keeps the named key's private
// material.
func (m *Manager) PrivateKeyPath(name string) string {
	return filepath.Join(m.dir, name)
}

// No dots: the metadata sidecar is <name>.json and must never collide with
// another key's private file.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,62}$`)

// Manager owns one key directory. All operations are safe for concurrent
// use.
type Manager struct {
	mu  sync.Mutex
	dir string
}

// NewManager ensures the key directory exists with owner-only access.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fleet.Wrap(fleet.ClassInternal, "", err)
	}
	return &Manager{dir: dir}, nil
}

// Generate creates a new key pair under name. ed25519 is the default;
// "rsa" honors bits (minimum 2048, default 4096). An existing name is a
// conflict, never an overwrite.
func (m *Manager) Generate(name, algorithm string, bits int) (Record, error) {
	if !nameRe.MatchString(name) {
		return Record{}, fleet.Errorf(fleet.ClassValidation, name, "invalid key name")
	}

	var signer crypto.Signer
	switch algorithm {
	case "", "ed25519":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
		}
		signer = priv
	case "rsa":
		if bits == 0 {
			bits = 4096
		}
		if bits < 2048 {
			return Record{}, fleet.Errorf(fleet.ClassValidation, name, "rsa keys must be at least 2048 bits")
		}
		priv, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
		}
		signer = priv
	default:
		return Record{}, fleet.Errorf(fleet.ClassValidation, name, "unsupported algorithm %q", algorithm)
	}

	block, err := ssh.MarshalPrivateKey(signer, "helmsman:"+name)
	if err != nil {
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}
	sshSigner, err := ssh.NewSignerFromKey(signer)
	if err != nil {
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(name, pem.EncodeToMemory(block), sshSigner.PublicKey(), OriginGenerated)
}

// Import registers an existing private key file after checking it is
// readable and parseable. The key material is copied into the managed
// directory; the original file is left alone.
func (m *Manager) Import(name, privateKeyPath string) (Record, error) {
	if !nameRe.MatchString(name) {
		return Record{}, fleet.Errorf(fleet.ClassValidation, name, "invalid key name")
	}
	data, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return Record{}, fleet.Wrap(fleet.ClassValidation, name, fmt.Errorf("key file not readable: %w", err))
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return Record{}, fleet.Wrap(fleet.ClassValidation, name, fmt.Errorf("not a valid private key: %w", err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(name, data, signer.PublicKey(), OriginImported)
}

// writeLocked persists key material and sidecar metadata. The private key
// is created with O_EXCL so a concurrent or earlier key under the same name
// surfaces as a conflict rather than being clobbered.
func (m *Manager) writeLocked(name string, privatePEM []byte, pub ssh.PublicKey, origin Origin) (Record, error) {
	privPath := m.PrivateKeyPath(name)
	f, err := os.OpenFile(privPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return Record{}, fleet.Errorf(fleet.ClassConflict, name, "key %q already exists", name)
		}
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}
	if _, err := f.Write(privatePEM); err != nil {
		f.Close()
		os.Remove(privPath)
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(privPath)
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}

	rec := Record{
		Name:        name,
		PublicKey:   string(ssh.MarshalAuthorizedKey(pub)),
		Fingerprint: Fingerprint(pub),
		CreatedAt:   time.Now(),
		Origin:      origin,
	}
	if err := m.saveRecord(rec); err != nil {
		os.Remove(privPath)
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}
	if err := os.WriteFile(privPath+".pub", []byte(rec.PublicKey), 0644); err != nil {
		os.Remove(privPath)
		os.Remove(m.recordPath(name))
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}
	return rec, nil
}

// Delete removes the key file and metadata.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	privPath := m.PrivateKeyPath(name)
	if _, err := os.Stat(privPath); err != nil {
		return fleet.Errorf(fleet.ClassNotFound, name, "no key named %q", name)
	}
	if err := os.Remove(privPath); err != nil {
		return fleet.Wrap(fleet.ClassInternal, name, err)
	}
	os.Remove(privPath + ".pub")
	os.Remove(m.recordPath(name))
	return nil
}

// Get returns one key's metadata.
func (m *Manager) Get(name string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.recordPath(name))
	if err != nil {
		return Record{}, fleet.Errorf(fleet.ClassNotFound, name, "no key named %q", name)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fleet.Wrap(fleet.ClassInternal, name, err)
	}
	return rec, nil
}

// List returns metadata for every managed key, sorted by the directory
// listing order (lexical).
func (m *Manager) List() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fleet.Wrap(fleet.ClassInternal, "", err)
	}
	var out []Record
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Manager) recordPath(name string) string {
	return filepath.Join(m.dir, name+".json")
}

func (m *Manager) saveRecord(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.recordPath(rec.Name), data, 0600)
}

// Fingerprint returns the SHA256 fingerprint in OpenSSH's display form.
func Fingerprint(pub ssh.PublicKey) string {
	hash := sha256.Sum256(pub.Marshal())
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(hash[:])
}
