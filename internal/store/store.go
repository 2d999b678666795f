// Package store persists the fleet catalog and holds credentials. The
// catalog is a plain JSON state file written atomically; secrets never
// touch it. Passwords live in the operating system keychain, which handles
// encryption at rest so the core never does.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"helmsman/internal/fleet"
)

// keyringService namespaces this daemon's entries in the system keychain.
const keyringService = "helmsman"

// State is everything the daemon persists between runs.
type State struct {
	Hosts []*fleet.Host `json:"hosts"`
}

// FileStore reads and writes the JSON state file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the persisted state, or an empty one when no file exists
// yet. Hosts always come back disconnected: connection state is runtime
// truth, not catalog truth.
func (fs *FileStore) Load() (State, error) {
	var st State
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing state file %s: %w", fs.path, err)
	}
	for _, h := range st.Hosts {
		h.Status = fleet.StatusDisconnected
		h.Deploy = fleet.DeployIdle
		h.Metrics = nil
		h.LogTail = nil
		h.LastTest = nil
	}
	return st, nil
}

// Save writes the state with a write-then-rename so a crash mid-write never
// leaves a torn file.
func (fs *FileStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

// KeyringSecrets stores passwords in the OS keychain. It satisfies the
// registry's Secrets contract.
type KeyringSecrets struct{}

func NewKeyringSecrets() *KeyringSecrets { return &KeyringSecrets{} }

func (k *KeyringSecrets) SetPassword(ref, password string) error {
	if err := keyring.Set(keyringService, ref, password); err != nil {
		return fmt.Errorf("storing credential %s: %w", ref, err)
	}
	return nil
}

func (k *KeyringSecrets) Password(ref string) (string, error) {
	pw, err := keyring.Get(keyringService, ref)
	if err != nil {
		return "", fmt.Errorf("reading credential %s: %w", ref, err)
	}
	return pw, nil
}

func (k *KeyringSecrets) DeletePassword(ref string) error {
	err := keyring.Delete(keyringService, ref)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("deleting credential %s: %w", ref, err)
	}
	return nil
}
