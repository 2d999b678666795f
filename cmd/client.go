package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"

	"helmsman/daemon"
	"helmsman/internal/config"
)

// send issues one command to the running daemon and returns its envelope.
// The write side is quick; the read deadline is generous because some
// commands (direct-deploy) hold the connection until the run resolves.
func send(cmdType string, args any) (daemon.Response, error) {
	var resp daemon.Response

	sock, err := resolveSocket()
	if err != nil {
		return resp, err
	}
	conn, err := net.DialTimeout("unix", sock, 3*time.Second)
	if err != nil {
		return resp, fmt.Errorf("daemon not reachable at %s (is 'helmsman serve' running?): %w", sock, err)
	}
	defer conn.Close()

	raw, err := json.Marshal(args)
	if err != nil {
		return resp, err
	}
	cmd := daemon.Command{Type: cmdType}
	if args != nil {
		cmd.Args = raw
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return resp, fmt.Errorf("sending command: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return resp, fmt.Errorf("reading response: %w", err)
	}
	return resp, nil
}

// resolveSocket prefers the --socket flag and falls back to configuration.
func resolveSocket() (string, error) {
	if socketPath != "" {
		return socketPath, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", err
	}
	return cfg.SocketPath, nil
}

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
)

// run sends a command and renders the envelope; on failure it exits
// non-zero after printing the classified error.
func run(cmdType string, args any, render func(data json.RawMessage)) {
	resp, err := send(cmdType, args)
	if err != nil {
		red.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	data, _ := json.Marshal(resp.Data)
	if !resp.Success {
		e := resp.Error
		if e != nil && e.Entity != "" {
			red.Fprintf(os.Stderr, "✗ [%s] %s: %s\n", e.Classification, e.Entity, e.Message)
		} else if e != nil {
			red.Fprintf(os.Stderr, "✗ [%s] %s\n", e.Classification, e.Message)
		} else {
			red.Fprintln(os.Stderr, "✗ command failed")
		}
		// Partial data (a failed test result, a partial transcript) is
		// still worth showing.
		if render != nil && len(data) > 0 && string(data) != "null" {
			render(data)
		}
		os.Exit(1)
	}
	if render != nil {
		render(data)
	}
}

// decodeInto unmarshals response data for a renderer, tolerating nulls.
func decodeInto(data json.RawMessage, v any) bool {
	if len(data) == 0 || string(data) == "null" {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
