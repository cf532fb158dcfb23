// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package supervisor keeps a single server process running. It restarts
// the process after unexpected exits, escalates from SIGTERM to SIGKILL
// when stopping it, and restarts it on demand, e.g. after a file change.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/z5labs/fnrun/internal/logging"
	"github.com/z5labs/fnrun/internal/try"

	"github.com/cenkalti/backoff/v4"
)

// State of the supervised child.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// defaultKillWait bounds how long a stop waits for a child to exit
// after it was sent SIGKILL.
const defaultKillWait = 5 * time.Second

// ErrRestartInProgress is returned by [Supervisor.Restart] when another
// restart has not finished yet. The request is dropped, not queued.
var ErrRestartInProgress = errors.New("restart already in progress")

type options struct {
	logHandler   slog.Handler
	signaler     Signaler
	dev          bool
	restartDelay time.Duration
	stopTimeout  time.Duration
	readyAddr    string
}

// Option
type Option func(*options)

// LogHandler
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// WithSignaler replaces [ProcessTree] as the way signals are delivered.
func WithSignaler(s Signaler) Option {
	return func(o *options) {
		o.signaler = s
	}
}

// DevMode disables automatic restarts after crashes. Restarts then only
// happen through [Supervisor.Restart].
func DevMode(enabled bool) Option {
	return func(o *options) {
		o.dev = enabled
	}
}

// RestartDelay is how long to wait before restarting a crashed child.
//
// Default is 3 seconds.
func RestartDelay(d time.Duration) Option {
	return func(o *options) {
		o.restartDelay = d
	}
}

// StopTimeout is how long a child has to exit after SIGTERM before it
// is sent SIGKILL.
//
// Default is 30 seconds.
func StopTimeout(d time.Duration) Option {
	return func(o *options) {
		o.stopTimeout = d
	}
}

// ReadyAddr makes the supervisor consider a child running only once a
// TCP connection to addr succeeds.
func ReadyAddr(addr string) Option {
	return func(o *options) {
		o.readyAddr = addr
	}
}

// Supervisor owns at most one child process at a time.
type Supervisor struct {
	spawner      Spawner
	signaler     Signaler
	log          *slog.Logger
	dev          bool
	restartDelay time.Duration
	stopTimeout  time.Duration
	killWait     time.Duration
	readyAddr    string
	dial         func(ctx context.Context, addr string) error

	// op serializes start and stop sequences so a restart always
	// finishes stopping the old child before spawning the next.
	op         sync.Mutex
	restarting atomic.Bool

	mu           sync.Mutex
	state        State
	child        Process
	exited       chan struct{}
	restartTimer *time.Timer
	restartGen   uint64

	fatal chan error
}

// New
func New(spawner Spawner, opts ...Option) *Supervisor {
	o := &options{
		logHandler:   logging.NoopHandler{},
		signaler:     ProcessTree{},
		restartDelay: 3 * time.Second,
		stopTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Supervisor{
		spawner:      spawner,
		signaler:     o.signaler,
		log:          slog.New(o.logHandler),
		dev:          o.dev,
		restartDelay: o.restartDelay,
		stopTimeout:  o.stopTimeout,
		killWait:     defaultKillWait,
		readyAddr:    o.readyAddr,
		dial:         dialTCP,
		fatal:        make(chan error, 1),
	}
}

// State returns the current state of the child.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run starts the child and keeps it supervised until ctx is cancelled,
// then stops it. Failing to stop the child cleanly is logged but not
// returned. An internal panic stops the child and is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// spawn failures are logged and, outside dev mode, retried
	_ = s.Start(ctx)

	var err error
	select {
	case <-ctx.Done():
		s.log.Info("shutting down supervisor")
	case err = <-s.fatal:
		s.log.Error("supervisor failed", logging.Error(err))
	}
	cancel()

	stopErr := s.Stop()
	if stopErr != nil {
		s.log.Error("failed to cleanly stop child", logging.Error(stopErr))
	}
	return err
}

// Start spawns the child unless one is already owned.
func (s *Supervisor) Start(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	return s.start(ctx)
}

// Stop terminates the child and its descendants and waits for it to
// exit. It always runs to completion: SIGTERM to the tree, SIGKILL to
// the tree if that cannot be delivered, and SIGKILL to the child if it
// is still alive after the stop timeout. A child which still has not
// exited shortly after SIGKILL is abandoned.
func (s *Supervisor) Stop() error {
	s.op.Lock()
	defer s.op.Unlock()

	return s.stop()
}

// Restart stops the current child, if any, and starts a new one.
// It returns [ErrRestartInProgress] without doing anything if called
// while another restart is still running.
func (s *Supervisor) Restart(ctx context.Context) error {
	if !s.restarting.CompareAndSwap(false, true) {
		s.log.DebugContext(ctx, "dropping restart request, one is already in progress")
		return ErrRestartInProgress
	}
	defer s.restarting.Store(false)

	s.op.Lock()
	defer s.op.Unlock()

	s.log.InfoContext(ctx, "restarting child")
	stopErr := s.stop()
	if stopErr != nil {
		s.log.ErrorContext(ctx, "failed to cleanly stop child", logging.Error(stopErr))
	}
	if ctx.Err() != nil {
		return errors.Join(stopErr, ctx.Err())
	}
	return errors.Join(stopErr, s.start(ctx))
}

// start must be called with op held.
func (s *Supervisor) start(ctx context.Context) error {
	s.mu.Lock()
	if s.child != nil {
		s.mu.Unlock()
		return nil
	}
	s.cancelRestartLocked()
	s.state = Starting
	s.mu.Unlock()

	proc, err := s.spawner.Spawn(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to spawn child", logging.Error(err))

		s.mu.Lock()
		s.state = Stopped
		if !s.dev && ctx.Err() == nil {
			s.scheduleRestartLocked(ctx)
		}
		s.mu.Unlock()
		return err
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.child = proc
	s.exited = exited
	s.mu.Unlock()

	s.log.InfoContext(ctx, "started child", logging.Pid(proc.Pid()))

	s.goSafe(func() { s.monitor(ctx, proc, exited) })
	s.goSafe(func() { s.awaitReady(ctx, proc) })
	return nil
}

// stop must be called with op held.
func (s *Supervisor) stop() error {
	s.mu.Lock()
	s.cancelRestartLocked()
	proc, exited := s.child, s.exited
	if proc == nil {
		s.state = Stopped
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.child == proc {
			s.child = nil
			s.exited = nil
		}
		s.state = Stopped
	}()

	pid := proc.Pid()
	s.log.Info("stopping child", logging.Pid(pid))

	var errs []error
	err := s.signaler.SignalTree(pid, syscall.SIGTERM)
	if err != nil {
		s.log.Warn("failed to send SIGTERM to process tree, sending SIGKILL", logging.Pid(pid), logging.Error(err))

		killErr := s.signaler.SignalTree(pid, syscall.SIGKILL)
		if killErr != nil {
			errs = append(errs, err, killErr)
		}
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-exited:
		s.log.Info("child stopped", logging.Pid(pid))
		return errors.Join(errs...)
	case <-timer.C:
	}

	s.log.Warn(
		"child did not exit in time, sending SIGKILL",
		logging.Pid(pid),
		logging.Duration("timeout", s.stopTimeout),
	)
	err = s.signaler.Signal(pid, syscall.SIGKILL)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}

	killTimer := time.NewTimer(s.killWait)
	defer killTimer.Stop()

	select {
	case <-exited:
		s.log.Info("child killed", logging.Pid(pid))
	case <-killTimer.C:
		// the child is released even if it never reports its exit
		s.log.Error(
			"child did not exit after SIGKILL, abandoning it",
			logging.Pid(pid),
			logging.Duration("timeout", s.killWait),
		)
	}
	return errors.Join(errs...)
}

// monitor waits for proc to exit. Exits the supervisor did not ask for
// schedule a restart unless they were clean, caused by SIGTERM, or
// happened in dev mode.
func (s *Supervisor) monitor(ctx context.Context, proc Process, exited chan struct{}) {
	defer close(exited)

	<-proc.Done()
	status := proc.ExitStatus()

	s.mu.Lock()
	current := s.child == proc
	requested := current && s.state == Stopping
	if current && !requested {
		s.child = nil
		s.exited = nil
		s.state = Stopped
	}
	restart := current && !requested && !s.dev && status.Unexpected() && ctx.Err() == nil
	if restart {
		s.scheduleRestartLocked(ctx)
	}
	s.mu.Unlock()

	attrs := []any{
		logging.Pid(proc.Pid()),
		slog.Int("code", status.Code),
	}
	if status.Signaled() {
		attrs = append(attrs, logging.Signal(status.Signal))
	}
	switch {
	case requested:
		s.log.InfoContext(ctx, "child exited", attrs...)
	case restart:
		attrs = append(attrs, logging.Duration("restart_delay", s.restartDelay))
		s.log.ErrorContext(ctx, "child exited unexpectedly, scheduling restart", attrs...)
	default:
		s.log.WarnContext(ctx, "child exited", attrs...)
	}
}

// scheduleRestartLocked replaces any pending restart. mu must be held.
func (s *Supervisor) scheduleRestartLocked(ctx context.Context) {
	s.cancelRestartLocked()

	gen := s.restartGen
	s.restartTimer = time.AfterFunc(s.restartDelay, func() {
		s.goSafe(func() {
			s.op.Lock()
			defer s.op.Unlock()

			s.mu.Lock()
			stale := gen != s.restartGen || ctx.Err() != nil
			s.mu.Unlock()
			if stale {
				return
			}
			s.start(ctx)
		})
	})
}

// cancelRestartLocked stops any pending restart. A timer which already
// fired sees the bumped generation and does nothing. mu must be held.
func (s *Supervisor) cancelRestartLocked() {
	s.restartGen++
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

func (s *Supervisor) awaitReady(ctx context.Context, proc Process) {
	if s.readyAddr != "" {
		probeCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-proc.Done():
				cancel()
			case <-probeCtx.Done():
			}
		}()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxInterval = time.Second
		b.MaxElapsedTime = 0

		err := backoff.Retry(func() error {
			return s.dial(probeCtx, s.readyAddr)
		}, backoff.WithContext(b, probeCtx))
		if err != nil {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child != proc || s.state != Starting {
		return
	}
	s.state = Running
	s.log.InfoContext(ctx, "child is running", logging.Pid(proc.Pid()))
}

// goSafe runs f on a new goroutine. A panic in f is handed to Run,
// which stops the child and returns it.
func (s *Supervisor) goSafe(f func()) {
	go func() {
		err := try.Call(func() error {
			f()
			return nil
		})
		if err == nil {
			return
		}
		select {
		case s.fatal <- err:
		default:
		}
	}()
}

func dialTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
