// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 if the process was killed by a signal.
	Code int

	// Signal is the signal which killed the process, or 0.
	Signal syscall.Signal
}

// Signaled reports whether the process was killed by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Signal != 0
}

// Unexpected reports whether the exit warrants an automatic restart:
// a non-zero exit code or death by any signal other than SIGTERM.
func (s ExitStatus) Unexpected() bool {
	if s.Signaled() {
		return s.Signal != syscall.SIGTERM
	}
	return s.Code != 0
}

func (s ExitStatus) String() string {
	if s.Signaled() {
		return "signal: " + s.Signal.String()
	}
	return fmt.Sprintf("exit code: %d", s.Code)
}

// Process is a running child.
type Process interface {
	Pid() int

	// Done is closed once the process has exited and its
	// [ExitStatus] is available.
	Done() <-chan struct{}

	ExitStatus() ExitStatus
}

// Spawner starts child processes.
type Spawner interface {
	Spawn(ctx context.Context) (Process, error)
}

// SpawnerFunc is a func variant of the [Spawner] interface.
type SpawnerFunc func(context.Context) (Process, error)

// Spawn implements the [Spawner] interface.
func (f SpawnerFunc) Spawn(ctx context.Context) (Process, error) {
	return f(ctx)
}

// SpawnError is returned when a child cannot be started.
type SpawnError struct {
	Command string
	Cause   error
}

// Error implements the [error] interface.
func (e SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %s", e.Command, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e SpawnError) Unwrap() error {
	return e.Cause
}

// Command spawns an OS process which shares the supervisor's
// standard streams and, unless Env is set, its environment.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn implements the [Spawner] interface. The child is not bound to
// ctx; stopping it is the supervisor's job.
func (c Command) Spawn(ctx context.Context) (Process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.Stdin = orDefault[io.Reader](c.Stdin, os.Stdin)
	cmd.Stdout = orDefault[io.Writer](c.Stdout, os.Stdout)
	cmd.Stderr = orDefault[io.Writer](c.Stderr, os.Stderr)

	err := cmd.Start()
	if err != nil {
		return nil, SpawnError{Command: c.String(), Cause: err}
	}

	p := &osProcess{
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go p.wait(cmd)
	return p, nil
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

type osProcess struct {
	pid    int
	done   chan struct{}
	status ExitStatus
}

func (p *osProcess) Pid() int               { return p.pid }
func (p *osProcess) Done() <-chan struct{}  { return p.done }
func (p *osProcess) ExitStatus() ExitStatus { return p.status }

func (p *osProcess) wait(cmd *exec.Cmd) {
	defer close(p.done)

	err := cmd.Wait()
	p.status = exitStatusOf(cmd.ProcessState, err)
}

func exitStatusOf(state *os.ProcessState, err error) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode()}
	}
	return ExitStatus{Code: state.ExitCode()}
}
