// The MIT License (MIT)
//
// Copyright (c) 2024 clamavguard authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package engine owns the scanning plugin's lifecycle state machine: Init,
// Close, and the per-worker ThreadInit/ThreadClose/TestFile trio that sit
// on top of the session package's wire protocol and keep-alive scheduler.
package engine

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/kerio-oss/clamavguard/session"
)

// ThreadContext is the opaque per-worker handle ThreadInit hands back and
// ThreadClose/TestFile take in. It owns one session.Session shared with the
// engine's registry for the duration it's registered.
type ThreadContext struct {
	session *session.Session
}

// Resolver resolves a configured address to a single IP string, first
// record wins. The zero value Engine uses net.LookupHost; tests inject a
// fake to avoid touching real DNS.
type Resolver func(address string) (string, error)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithResolver overrides the name resolution step Init performs.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolve = r }
}

// Engine is the top-level plugin lifecycle: it owns the configuration, the
// resolved daemon endpoint, the session registry, and the keep-alive task.
type Engine struct {
	state atomic.Int32

	// lifecycleMu serializes Init and Close against each other; it is
	// never held across ThreadInit/ThreadClose/TestFile so worker
	// goroutines never block behind a slow Init or Close.
	lifecycleMu sync.Mutex

	cfg      Config
	endpoint session.Endpoint
	resolve  Resolver

	registry      *session.Registry
	keepAlive     *session.KeepAlive
	keepAliveDone chan struct{}

	closing        atomic.Bool
	runningThreads atomic.Int64

	logger *Logger

	errMu   sync.Mutex
	lastErr error
}

// New builds an Engine in the Closed state. A nil logger discards all
// output.
func New(logger *Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = NewLogger(nil)
	}
	e := &Engine{
		logger:   logger,
		registry: session.NewRegistry(),
		resolve:  defaultResolver,
	}
	e.state.Store(int32(Closed))
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultResolver(address string) (string, error) {
	if address == "" {
		return "", errors.New("address is empty")
	}
	ips, err := net.LookupHost(address)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.Errorf("no address records for %s", address)
	}
	return ips[0], nil
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

func (e *Engine) setFailed(err *InitError) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
	e.setState(Failed)
}

// LastError is the most recent Init/connect-class error, for the host
// boundary to surface through its 512-byte error buffer. TestFile errors
// never land here; they are only ever returned through its own output
// text, per the spec's error handling design.
func (e *Engine) LastError() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

// RunningThreads reports the number of in-flight TestFile calls.
func (e *Engine) RunningThreads() int64 { return e.runningThreads.Load() }

// RegisteredSessions reports how many sessions keep-alive currently sweeps.
func (e *Engine) RegisteredSessions() int { return e.registry.Len() }

// Snapshot is a point-in-time read of the engine's counters, for the stats
// logger and for a host's diagnostic dump.
func (e *Engine) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		RunningThreads:     e.RunningThreads(),
		RegisteredSessions: e.RegisteredSessions(),
		State:              e.State(),
	}
}

// Init loads opts into a Config, resolves Address, performs a bootstrap
// handshake against the daemon to prove it's reachable and speaks the
// protocol, and transitions the engine into Running with its keep-alive
// scheduler armed. It is only legal to call from Closed or Failed; any
// other starting state is itself an error that also latches Failed.
func (e *Engine) Init(opts map[string]string) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if s := e.State(); s != Closed && s != Failed {
		err := wrapInitError("The ClamAV plugin has already been initialized.", ErrAlreadyInitialized)
		e.logger.Errorf("%s", err.Message())
		e.setFailed(err)
		return err
	}
	e.setState(Initializing)
	e.logger.Debugf("Initializing ClamAV plugin...")

	cfg := LoadConfig(opts)
	e.logger.Debugf("Startup timeout is set to %d", cfg.StartupTimeoutSeconds)

	ip, err := e.resolve(cfg.Address)
	if err != nil {
		initErr := wrapInitError(fmt.Sprintf("Cannot resolve host (%s).", cfg.Address), err)
		e.logger.Errorf("%s", initErr.Message())
		e.setFailed(initErr)
		return initErr
	}
	endpoint := session.Endpoint{IP: ip, Port: cfg.Port}
	e.logger.Debugf("ClamAV Server IP address: %s", endpoint)

	timeout := time.Duration(cfg.StartupTimeoutSeconds) * time.Second
	bootstrap := session.New(timeout)
	if err := bootstrap.Connect(endpoint); err != nil {
		initErr := wrapInitError("Cannot connect to ClamAV Server.", err)
		e.logger.Errorf("Cannot connect to ClamAV Server on %s", endpoint)
		e.setFailed(initErr)
		return initErr
	}
	defer bootstrap.Close()

	if err := bootstrap.StartSession(); err != nil {
		e.logger.Warnf("Cannot initiate session to the ClamAV Server")
	} else {
		e.logger.Debugf("Session initialized.")
	}

	if err := bootstrap.Ping(); err != nil {
		initErr := wrapInitError(err.Error(), err)
		e.setFailed(initErr)
		return initErr
	}

	version, err := bootstrap.GetVersion()
	if err == nil && version == "" {
		err = errors.New("empty version reply")
	}
	if err != nil {
		initErr := wrapInitError("Only ClamAV Server 0.95 and newer is supported.", err)
		e.logger.Errorf("%s", initErr.Message())
		e.setFailed(initErr)
		return initErr
	}
	e.logger.Debugf("Version: %s", version)

	if err := bootstrap.EndSession(); err != nil {
		e.logger.Warnf("Cannot destroy session at the ClamAV Server")
	} else {
		e.logger.Debugf("Session finished.")
	}

	e.cfg = cfg
	e.endpoint = endpoint
	e.closing.Store(false)
	e.setState(Running)
	e.logger.Debugf("The engine has been initialized")

	e.keepAlive = session.NewKeepAlive(e.registry, func(format string, args ...interface{}) {
		e.logger.Warnf(format, args...)
	})
	e.keepAliveDone = make(chan struct{})
	go func() {
		defer close(e.keepAliveDone)
		e.keepAlive.Run(e.closing.Load)
	}()

	return nil
}

// Close latches the engine into Closing, waits for every in-flight
// TestFile call to drain, joins the keep-alive task, and transitions to
// Closed. Calling Close on an already-Closed engine is a no-op.
func (e *Engine) Close() error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.State() == Closed {
		e.logger.Debugf("The ClamAV plugin is already closed.")
		return nil
	}

	e.logger.Debugf("The ClamAV plugin is closing...")
	e.closing.Store(true)
	e.setState(Closing)

	for {
		n := e.runningThreads.Load()
		if n == 0 {
			break
		}
		e.logger.Debugf("Waiting for %d of running threads before closing.", n)
		time.Sleep(time.Second)
	}

	if e.keepAliveDone != nil {
		<-e.keepAliveDone
	}

	e.setState(Closed)
	return nil
}

// ThreadInit opens a dedicated session for one worker, puts it in
// IDSESSION mode, and registers it with the keep-alive scheduler. Failure
// at any step releases whatever was acquired and latches the engine Failed,
// matching the source: a worker that can't get a session means the daemon
// is no longer trustworthy for anyone.
func (e *Engine) ThreadInit() (*ThreadContext, error) {
	e.logger.Debugf("Initializing context")

	if e.endpoint.IP == "" {
		e.logger.Debugf("Internal context error")
		return nil, errors.New("engine has no resolved endpoint; Init must succeed first")
	}

	sess := session.New(time.Duration(e.cfg.StartupTimeoutSeconds) * time.Second)
	if err := sess.Connect(e.endpoint); err != nil {
		initErr := wrapInitError("Cannot connect to ClamAV Server.", err)
		e.logger.Errorf("Cannot connect to ClamAV Server on %s", e.endpoint)
		e.setFailed(initErr)
		return nil, initErr
	}

	if err := sess.StartSession(); err != nil {
		initErr := wrapInitError("Cannot initiate session at the ClamAV Server", err)
		e.logger.Errorf("%s", initErr.Message())
		sess.Close()
		e.setFailed(initErr)
		return nil, initErr
	}

	e.registry.Register(sess)
	e.logger.Debugf("Context initialized")
	return &ThreadContext{session: sess}, nil
}

// ThreadClose unregisters ctx's session from keep-alive, ends the
// IDSESSION, and closes the connection. Unregistering always succeeds;
// ThreadClose only reports failure when ending the session itself failed.
func (e *Engine) ThreadClose(ctx *ThreadContext) error {
	e.logger.Debugf("De-initializing context")
	if ctx == nil {
		return nil
	}

	e.registry.Unregister(ctx.session)

	err := ctx.session.EndSession()
	if err != nil {
		e.logger.Warnf("Cannot destroy session at the ClamAV Server")
	}
	ctx.session.Close()
	return err
}

// TestFile scans filename using ctx's session and returns the host-visible
// verdict plus its descriptive text.
func (e *Engine) TestFile(ctx *ThreadContext, filename string) (session.Verdict, string) {
	e.logger.Debugf("Scanning file '%s'...", filename)

	if filename == "" {
		return session.VerdictError, ""
	}

	fi, err := os.Stat(filename)
	if err != nil {
		return session.VerdictFailed, filename + " does not exist."
	}

	if fi.Size() == 0 {
		return session.VerdictOK, filename + " is empty."
	}

	if ctx == nil {
		return session.VerdictError, "Scanning failed - No engine is initialized..."
	}

	e.runningThreads.Add(1)
	defer e.runningThreads.Add(-1)

	if e.State() != Running {
		return session.VerdictError, "Scanning failed - The engine is not ready..."
	}

	return ctx.session.Scan(filename)
}
