// Package gitproc runs the git binary as a subprocess and captures its
// output. It is the only place in the module that shells out.
package gitproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// englishEnv is appended to every invocation so that git's textual output
// (matched for merge conflicts and already-existing remotes) is stable across
// hosts regardless of the operator's locale.
const englishEnv = "LANG=en_US.UTF-8"

// waitDelay bounds how long we wait for git to exit after ctx is cancelled
// before force-killing it.
const waitDelay = 5 * time.Second

// Error wraps a failed git invocation with enough detail for operator
// triage: the arguments, exit code and both output streams verbatim.
type Error struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s: %v { stdout: %q, stderr: %q }", strings.Join(e.Args, " "), e.Err, e.Stdout, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// SpawnError indicates the git process could not be started at all.
type SpawnError struct {
	Args []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Run executes gitExec with args in cwd, with envs appended to the
// process environment (which always includes englishEnv). It returns
// trimmed stdout on success. No exit code is treated as exceptional here;
// callers interpret the returned error and, where needed, type-assert to
// *Error to inspect stdout/stderr/exit code.
func Run(ctx context.Context, log *slog.Logger, envs []string, cwd, gitExec string, args ...string) (string, error) {
	if gitExec == "" {
		gitExec = "git"
	}

	cmdStr := gitExec + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, gitExec, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = waitDelay
	if cwd != "" {
		cmd.Dir = cwd
	}

	cmd.Env = append(append(os.Environ(), englishEnv), envs...)

	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return "", &SpawnError{Args: args, Err: err}
	}

	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout, &Error{Args: args, ExitCode: exitCode, Stdout: stdout, Stderr: stderr, Err: err}
	}

	log.Log(ctx, -8, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)

	return stdout, nil
}
