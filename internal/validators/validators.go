// Package validators guards the control boundary: every command's inputs
// are shape-checked here before the core sees them, so the core can assume
// its invariants hold on entry.
package validators

import (
	"regexp"
	"strings"

	"helmsman/internal/fleet"
)

var hostIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// HostID enforces the restricted identifier pattern for host ids.
func HostID(id string) error {
	if !hostIDRe.MatchString(id) {
		return fleet.Errorf(fleet.ClassValidation, id,
			"host id must match [a-z0-9][a-z0-9-]{0,62}")
	}
	return nil
}

// RemotePath rejects empty paths and parent-directory traversal. Remote
// paths must be absolute or $HOME-relative; nothing may climb upward.
func RemotePath(path string) error {
	if path == "" {
		return fleet.Errorf(fleet.ClassValidation, "", "path must not be empty")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fleet.Errorf(fleet.ClassValidation, path,
				"path must not contain parent-directory traversal")
		}
	}
	if strings.ContainsAny(path, "\x00\n") {
		return fleet.Errorf(fleet.ClassValidation, path, "path contains control characters")
	}
	return nil
}

// Command rejects empty remote commands and scripts.
func Command(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return fleet.Errorf(fleet.ClassValidation, "", "command must not be empty")
	}
	return nil
}

// Address rejects empty host addresses.
func Address(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fleet.Errorf(fleet.ClassValidation, "", "address must not be empty")
	}
	if strings.ContainsAny(addr, " \t\n") {
		return fleet.Errorf(fleet.ClassValidation, addr, "address must not contain whitespace")
	}
	return nil
}

// Port accepts 0 (default) or a valid TCP port.
func Port(port int) error {
	if port < 0 || port > 65535 {
		return fleet.Errorf(fleet.ClassValidation, "", "port must be between 0 and 65535")
	}
	return nil
}

// Mode checks an octal permission mode string like "755" or "0644".
var modeRe = regexp.MustCompile(`^0?[0-7]{3,4}$`)

func Mode(mode string) error {
	if mode == "" {
		return nil
	}
	if !modeRe.MatchString(mode) {
		return fleet.Errorf(fleet.ClassValidation, mode, "mode must be octal, e.g. 755")
	}
	return nil
}

// HookName restricts git hook names to the safe filename alphabet.
var hookNameRe = regexp.MustCompile(`^[a-z][a-z-]{0,40}$`)

func HookName(name string) error {
	if !hookNameRe.MatchString(name) {
		return fleet.Errorf(fleet.ClassValidation, name, "invalid hook name")
	}
	return nil
}
