// Package supervise owns the lifecycle of at most one llama-server process
// per Supervisor: start (spawn plus wait-for-ready), stop (graceful then
// forced), and best-effort reconciliation against orphaned servers left over
// from a previous orchestrator run.
package supervise

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/common/fsutil"
	"llamad/internal/locate"
	"llamad/pkg/types"
)

// State is the supervisor lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// StartStatus discriminates the successful outcomes of Start.
type StartStatus string

const (
	// StatusStarted: the server answered the health probe within the window.
	StatusStarted StartStatus = "started"
	// StatusStillStarting: the readiness window expired but the process is
	// alive. Large models can legitimately take longer to load, so this is a
	// soft success rather than a failure.
	StatusStillStarting StartStatus = "still_starting"
	// StatusAlreadyRunning: a server was already up; nothing was spawned.
	StatusAlreadyRunning StartStatus = "already_running"
)

// StartResult reports the outcome of a successful Start call.
type StartResult struct {
	Status  StartStatus
	Message string
	PID     int
}

// Prober answers whether the server at the configured port accepts requests.
type Prober interface {
	HealthCheck(ctx context.Context) bool
}

// Defaults applied when the corresponding Config field is unset.
const (
	defaultReadyTimeout = 15 * time.Second
	defaultPollInterval = 500 * time.Millisecond
	defaultStopGrace    = 5 * time.Second
	stderrExcerptLimit  = 200
)

// Config carries supervisor tunables. Server is snapshotted per Start call;
// mutating it afterwards has no effect until a restart.
type Config struct {
	Server       types.ServerConfig
	ReadyTimeout time.Duration
	PollInterval time.Duration
	StopGrace    time.Duration
}

// handle is the exclusive ownership token for a spawned process. It exists
// only while the process is believed alive.
type handle struct {
	cmd      *exec.Cmd
	stderr   *bytes.Buffer
	model    string
	pid      int
	waitDone chan struct{} // closed when cmd.Wait returns
	waitErr  error         // valid after waitDone is closed
}

// exited reports whether the process has been reaped, without blocking.
func (h *handle) exited() bool {
	select {
	case <-h.waitDone:
		return true
	default:
		return false
	}
}

// Supervisor manages a single llama-server process. Start and Stop are
// serialized by an internal mutex; IsRunning and Status are cheap,
// side-effect-free, and safe from any goroutine.
type Supervisor struct {
	cfg       Config
	prober    Prober
	logger    zerolog.Logger
	publisher EventPublisher

	opMu sync.Mutex // serializes Start/Stop

	mu    sync.Mutex // guards proc and state
	proc  *handle
	state State
}

// Option tweaks Supervisor construction.
type Option func(*Supervisor)

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithPublisher installs an EventPublisher for lifecycle events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Supervisor) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New constructs a Supervisor. The prober is consulted for readiness and for
// the handle-less half of IsRunning; it must target cfg.Server.Port.
func New(cfg Config, prober Prober, opts ...Option) *Supervisor {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	s := &Supervisor{
		cfg:       cfg,
		prober:    prober,
		logger:    zerolog.Nop(),
		publisher: noopPublisher{},
		state:     StateStopped,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tracked returns the pid and model of the held process handle, or zero
// values when no handle is held.
func (s *Supervisor) Tracked() (pid int, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0, ""
	}
	return s.proc.pid, s.proc.model
}

// IsRunning reports whether a server is up: true if the held handle is still
// alive, otherwise whether the health probe against the configured port
// succeeds. The fallback covers servers that outlived a previous orchestrator
// run, where no handle is held.
func (s *Supervisor) IsRunning(ctx context.Context) bool {
	s.mu.Lock()
	if s.proc != nil {
		if !s.proc.exited() {
			s.mu.Unlock()
			return true
		}
		// Reap the dead handle so later calls fall through to the probe.
		s.proc = nil
		s.state = StateStopped
	}
	s.mu.Unlock()
	return s.prober.HealthCheck(ctx)
}

// Start spawns and waits for readiness. A no-op success when already
// running. modelOverride, when non-empty, replaces the configured model path
// for this start only. The readiness window expiring with the process still
// alive is reported as StatusStillStarting with a nil error.
func (s *Supervisor) Start(ctx context.Context, modelOverride string) (StartResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.IsRunning(ctx) {
		return StartResult{Status: StatusAlreadyRunning, Message: "server already running"}, nil
	}

	binary, err := locate.FindBinary(s.cfg.Server.BinaryPath)
	if err != nil {
		return StartResult{}, binaryNotFoundError{}
	}

	model := modelOverride
	if model == "" {
		model = s.cfg.Server.ModelPath
	}
	if model == "" {
		return StartResult{}, modelMissingError{}
	}
	model, err = fsutil.ExpandHome(model)
	if err != nil {
		return StartResult{}, modelNotFoundError{path: model}
	}
	if abs, err := filepath.Abs(model); err == nil {
		model = abs
	}
	if !fsutil.PathExists(model) {
		return StartResult{}, modelNotFoundError{path: model}
	}

	args := []string{
		"--model", model,
		"--port", strconv.Itoa(s.cfg.Server.Port),
		"--ctx-size", strconv.Itoa(s.cfg.Server.ContextSize),
	}
	if s.cfg.Server.GPULayers > 0 {
		args = append(args, "--n-gpu-layers", strconv.Itoa(s.cfg.Server.GPULayers))
	}

	cmd := exec.Command(binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Detach so the server outlives an orchestrator restart; ownership of the
	// process transfers to the OS, reconciliation recovers it later.
	cmd.SysProcAttr = detachSysProcAttr()
	if err := cmd.Start(); err != nil {
		return StartResult{}, startFailedError{excerpt: err.Error()}
	}

	h := &handle{cmd: cmd, stderr: &stderr, model: model, pid: cmd.Process.Pid, waitDone: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.waitDone)
	}()

	s.mu.Lock()
	s.proc = h
	s.state = StateStarting
	s.mu.Unlock()

	s.logger.Info().Str("binary", binary).Str("model", model).Int("pid", h.pid).Int("port", s.cfg.Server.Port).Msg("server spawned")
	s.publisher.Publish(Event{Name: "spawn_start", Fields: map[string]any{"pid": h.pid, "model": model, "port": s.cfg.Server.Port}})

	iterations := int(s.cfg.ReadyTimeout / s.cfg.PollInterval)
	if iterations < 1 {
		iterations = 1
	}
	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			// Caller gave up waiting; the detached process keeps loading and
			// the handle stays held so Stop can still manage it.
			return StartResult{}, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}

		if h.exited() {
			excerpt := truncate(stderr.String(), stderrExcerptLimit)
			s.mu.Lock()
			s.proc = nil
			s.state = StateStopped
			s.mu.Unlock()
			s.logger.Error().Int("pid", h.pid).Err(h.waitErr).Str("stderr", excerpt).Msg("server exited before ready")
			s.publisher.Publish(Event{Name: "spawn_exit", Fields: map[string]any{"pid": h.pid, "stderr": excerpt}})
			return StartResult{}, startFailedError{excerpt: excerpt}
		}

		if s.prober.HealthCheck(ctx) {
			s.mu.Lock()
			s.state = StateRunning
			s.mu.Unlock()
			s.logger.Info().Int("pid", h.pid).Msg("server ready")
			s.publisher.Publish(Event{Name: "spawn_ready", Fields: map[string]any{"pid": h.pid}})
			return StartResult{Status: StatusStarted, Message: "server started", PID: h.pid}, nil
		}
	}

	// Window exhausted with the process alive: optimistic soft success, the
	// model may simply be large.
	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	s.logger.Warn().Int("pid", h.pid).Dur("waited", s.cfg.ReadyTimeout).Msg("server still starting after readiness window")
	s.publisher.Publish(Event{Name: "spawn_timeout", Fields: map[string]any{"pid": h.pid}})
	return StartResult{Status: StatusStillStarting, Message: "server starting (may take a moment to be ready)", PID: h.pid}, nil
}

// Stop terminates the server. A no-op success when nothing is running. With
// a held handle: graceful termination, a bounded wait, then a forced kill.
// Without a handle it falls back to the reconciliation scan and reports a
// stop failure if no matching process could be found and killed.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.IsRunning(ctx) {
		return nil
	}

	s.mu.Lock()
	h := s.proc
	s.state = StateStopping
	s.mu.Unlock()

	if h != nil {
		s.terminateTracked(h)
		s.mu.Lock()
		s.proc = nil
		s.state = StateStopped
		s.mu.Unlock()
		s.publisher.Publish(Event{Name: "stop", Fields: map[string]any{"pid": h.pid}})
		return nil
	}

	// Orphan path: a server is reachable but we own no handle.
	name := locate.BinaryName()
	orphans := findOrphans(name)
	stopped := false
	for _, p := range orphans {
		if stopOrphan(p, s.cfg.StopGrace) {
			s.logger.Info().Int32("pid", p.Pid).Msg("stopped orphaned server")
			s.publisher.Publish(Event{Name: "stop_orphan", Fields: map[string]any{"pid": p.Pid}})
			stopped = true
		}
	}
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	if !stopped {
		return stopFailedError{msg: "no process matching " + name + " could be terminated"}
	}
	return nil
}

// terminateTracked stops a process we own: graceful first, kill after the
// grace window expires.
func (s *Supervisor) terminateTracked(h *handle) {
	_ = terminateProcess(h.cmd.Process)
	select {
	case <-h.waitDone:
	case <-time.After(s.cfg.StopGrace):
		s.logger.Warn().Int("pid", h.pid).Msg("graceful stop timed out, killing")
		_ = h.cmd.Process.Kill()
		<-h.waitDone
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
