// Package sshexec runs single commands on remote hosts over SSH. It opens
// one session per call, never pools connections, and never retries; retry
// policy belongs to callers. It is the only package that sees raw transport
// and protocol errors, which it classifies before they bubble up.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultDialTimeout bounds the TCP connect when the context carries no
// earlier deadline.
const DefaultDialTimeout = 15 * time.Second

// Target is everything needed to reach and authenticate one host. Password
// is resolved by the caller (the registry pulls it from the secret store);
// this package never touches the keychain.
type Target struct {
	Addr     string // host:port
	User     string
	Password string // optional
	KeyPath  string // optional path to a private key
}

// Result captures one command's remote outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner is the execution contract the rest of the system depends on. Tests
// substitute a fake; production wires *Executor.
type Runner interface {
	Run(ctx context.Context, t Target, command string) (Result, error)
}

// Executor dials, authenticates, runs one command and tears the session
// down. A context deadline bounds the whole call; on expiry the connection
// is force-closed. The remote process is not guaranteed to die with it:
// SSH gives no reliable cross-server signal delivery, so remote-side effects
// of a timed-out command are indeterminate.
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Run(ctx context.Context, t Target, command string) (Result, error) {
	client, err := dial(ctx, t)
	if err != nil {
		return Result{}, err
	}
	defer client.Close()
	return runOnClient(ctx, client, command)
}

// dial performs the TCP connect and SSH handshake as separate steps so that
// unreachable hosts, handshake failures and bad credentials classify
// distinctly.
func dial(ctx context.Context, t Target) (*ssh.Client, error) {
	cfg, err := clientConfig(t)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, classifyDial(t.Addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.Addr, cfg)
	if err != nil {
		conn.Close()
		return nil, classifyHandshake(t.Addr, err)
	}
	// Handshake done; hand deadline management back to per-call contexts.
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func runOnClient(ctx context.Context, client *ssh.Client, command string) (Result, error) {
	session, err := client.NewSession()
	if err != nil {
		return Result{}, &Error{Kind: KindUnknown, Op: "session", Cause: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return Result{}, &Error{Kind: KindUnknown, Op: "start", Cause: err}
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		// Force-close the transport; Wait unblocks with an error. The
		// remote process may keep running.
		client.Close()
		<-done
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1},
			&Error{Kind: KindTimeout, Op: "run", Cause: ctx.Err()}
	case err := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		return res, &Error{Kind: KindUnknown, Op: "wait", Cause: err}
	}
}

// clientConfig prefers key auth when a key path is set, falling back to
// password when both are present.
func clientConfig(t Target) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod
	if t.KeyPath != "" {
		data, err := os.ReadFile(t.KeyPath)
		if err != nil {
			return nil, &Error{Kind: KindAuthFailed, Op: "read-key", Cause: err}
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, &Error{Kind: KindAuthFailed, Op: "parse-key", Cause: err}
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if t.Password != "" {
		methods = append(methods, ssh.Password(t.Password))
	}
	if len(methods) == 0 {
		return nil, &Error{Kind: KindAuthFailed, Op: "config", Cause: fmt.Errorf("no password or key configured")}
	}
	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         DefaultDialTimeout,
	}, nil
}
