// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

// Signaler delivers signals to child processes.
type Signaler interface {
	// SignalTree signals pid and every process descended from it.
	SignalTree(pid int, sig syscall.Signal) error

	// Signal signals pid alone.
	Signal(pid int, sig syscall.Signal) error
}

// SignalError is returned when a signal cannot be delivered.
type SignalError struct {
	Pid    int
	Signal syscall.Signal
	Cause  error
}

// Error implements the [error] interface.
func (e SignalError) Error() string {
	return fmt.Sprintf("failed to send %s to process %d: %s", e.Signal, e.Pid, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e SignalError) Unwrap() error {
	return e.Cause
}

// ProcessTree is the default [Signaler]. It walks the process table to
// find descendants, so grandchildren started by the child (e.g. by a
// `go run` wrapper) are signalled too.
type ProcessTree struct{}

// SignalTree implements the [Signaler] interface. The tree is captured
// before anything is signalled so descendants are still found after
// the root exits and they get reparented. Descendants which are already
// gone are skipped.
func (ProcessTree) SignalTree(pid int, sig syscall.Signal) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return SignalError{Pid: pid, Signal: sig, Cause: err}
	}

	descendants := collectDescendants(root)

	err = root.SendSignal(sig)
	if err != nil {
		return SignalError{Pid: pid, Signal: sig, Cause: err}
	}

	var errs []error
	for _, p := range descendants {
		err := p.SendSignal(sig)
		if err == nil || errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
			continue
		}
		errs = append(errs, SignalError{Pid: int(p.Pid), Signal: sig, Cause: err})
	}
	return errors.Join(errs...)
}

// Signal implements the [Signaler] interface.
func (ProcessTree) Signal(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return SignalError{Pid: pid, Signal: sig, Cause: err}
	}
	err = p.Signal(sig)
	if err != nil {
		return SignalError{Pid: pid, Signal: sig, Cause: err}
	}
	return nil
}

// collectDescendants lists every descendant of root, parents before children.
func collectDescendants(root *process.Process) []*process.Process {
	var out []*process.Process
	queue := []*process.Process{root}
	seen := map[int32]bool{root.Pid: true}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		children, err := p.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Pid] {
				continue
			}
			seen[c.Pid] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}
