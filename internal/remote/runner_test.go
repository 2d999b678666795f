package remote

import (
	"context"

	"helmsman/internal/sshexec"
)

// fakeRunner records the last command and answers with a canned result, or
// delegates to fn when set.
type fakeRunner struct {
	commands []string
	result   sshexec.Result
	err      error
	fn       func(command string) (sshexec.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, _ sshexec.Target, command string) (sshexec.Result, error) {
	f.commands = append(f.commands, command)
	if f.fn != nil {
		return f.fn(command)
	}
	return f.result, f.err
}
