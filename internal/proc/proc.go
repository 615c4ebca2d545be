// Package proc supervises the harness's subprocesses: the server under
// test, its clients, and the packet capture tool.
//
// Every process is owned by exactly one handle from spawn to stop. The
// supervisor keeps a registry of the handles it created so the run-level
// exit guard can stop everything it ever started without resorting to
// command-line pattern matching.
package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Kind identifies what role a managed process plays.
type Kind int

const (
	KindServer Kind = iota
	KindClient
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindCapture:
		return "capture"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StopOutcome reports how a process left the system.
type StopOutcome int

const (
	// AlreadyDead means the process had exited before Stop was called;
	// no signal was sent.
	AlreadyDead StopOutcome = iota
	// StoppedGracefully means the process exited within the grace
	// period after SIGTERM.
	StoppedGracefully
	// StoppedForcefully means the process ignored SIGTERM and was
	// killed.
	StoppedForcefully
)

func (o StopOutcome) String() string {
	switch o {
	case AlreadyDead:
		return "already-dead"
	case StoppedGracefully:
		return "stopped-gracefully"
	case StoppedForcefully:
		return "stopped-forcefully"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Process is a mutable handle for one spawned subprocess. It transitions
// to stopped only through Supervisor.Stop; nothing outside this package
// signals the underlying process.
type Process struct {
	Kind      Kind
	PID       int
	LogPath   string
	StartTime time.Time

	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
	waitErr error
}

// Alive reports whether the process has not yet exited.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when the process exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// WaitErr returns the exit error once the process has exited.
func (p *Process) WaitErr() error {
	<-p.done
	return p.waitErr
}

// Supervisor spawns and stops subprocesses, tracking every handle.
type Supervisor struct {
	mu    sync.Mutex
	procs []*Process
}

// NewSupervisor returns an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Spawn starts argv with extra environment entries appended to the
// current environment. Output goes to logPath when it is non-empty.
// Only one server may be alive at a time: spawning a new KindServer
// first force-stops any tracked server still running, so a straggler
// from an aborted scenario cannot hold the port.
func (s *Supervisor) Spawn(kind Kind, argv []string, env []string, logPath string) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("proc: spawn with empty argv")
	}

	if kind == KindServer {
		for _, old := range s.ByKind(KindServer) {
			if old.Alive() {
				s.Stop(old, 0)
			}
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)

	var logFile *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("proc: open log %s: %w", logPath, err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("proc: spawn %s %q: %w", kind, argv[0], err)
	}

	p := &Process{
		Kind:      kind,
		PID:       cmd.Process.Pid,
		LogPath:   logPath,
		StartTime: time.Now(),
		cmd:       cmd,
		logFile:   logFile,
		done:      make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		if p.logFile != nil {
			p.logFile.Close()
		}
		close(p.done)
	}()

	s.mu.Lock()
	s.procs = append(s.procs, p)
	s.mu.Unlock()
	return p, nil
}

// Stop terminates p with the two-phase protocol: SIGTERM, wait up to
// grace, then SIGKILL. A zero grace skips straight to the kill.
func (s *Supervisor) Stop(p *Process, grace time.Duration) StopOutcome {
	if !p.Alive() {
		return AlreadyDead
	}

	if grace > 0 {
		// Signal can only fail if the process is already gone.
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			<-p.done
			return AlreadyDead
		}
		select {
		case <-p.done:
			return StoppedGracefully
		case <-time.After(grace):
		}
	}

	p.cmd.Process.Kill()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		// Unkillable (disk-wait) process; the handle stays tracked.
	}
	return StoppedForcefully
}

// Wait blocks until p exits or timeout elapses; it reports whether the
// process exited in time.
func (s *Supervisor) Wait(p *Process, timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ByKind returns the tracked handles of one kind, in spawn order.
func (s *Supervisor) ByKind(kind Kind) []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Process
	for _, p := range s.procs {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Alive returns every tracked handle that has not exited.
func (s *Supervisor) Alive() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Process
	for _, p := range s.procs {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// StopAll force-stops every live tracked process, newest first. It is
// the exit guard's teardown and must succeed without cooperation from
// the children, so the grace period is short.
func (s *Supervisor) StopAll(grace time.Duration) int {
	s.mu.Lock()
	procs := make([]*Process, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	stopped := 0
	for i := len(procs) - 1; i >= 0; i-- {
		if !procs[i].Alive() {
			continue
		}
		s.Stop(procs[i], grace)
		stopped++
	}
	return stopped
}
