// Package capture runs tcpdump for the duration of one scenario.
package capture

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"impairbench/internal/proc"
)

// ErrUnavailable means the capture tool is not installed. Callers treat
// this as a degraded-but-continuable condition, not a failure.
var ErrUnavailable = errors.New("capture: tcpdump not found in PATH")

// settleDelay is how long the manager waits before confirming the
// capture process survived startup (bad filter, unreadable interface).
const settleDelay = time.Second

// Manager starts and stops one packet-capture subprocess at a time.
type Manager struct {
	sup      *proc.Supervisor
	lookPath func(string) (string, error)
	settle   time.Duration
}

// NewManager returns a Manager spawning through sup.
func NewManager(sup *proc.Supervisor) *Manager {
	return &Manager{sup: sup, lookPath: exec.LookPath, settle: settleDelay}
}

// Start begins capturing UDP traffic for port on iface into outPath.
// It returns ErrUnavailable when tcpdump is absent, and an error when
// the process dies within the settle window (the capture must never be
// silently believed to be running).
func (m *Manager) Start(iface string, port int, outPath, logPath string) (*proc.Process, error) {
	bin, err := m.lookPath("tcpdump")
	if err != nil {
		return nil, ErrUnavailable
	}

	argv := []string{bin, "-i", iface, "-w", outPath, "udp", "port", strconv.Itoa(port)}
	p, err := m.sup.Spawn(proc.KindCapture, argv, nil, logPath)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	if m.sup.Wait(p, m.settle) {
		return nil, fmt.Errorf("capture: tcpdump exited during startup: %w", p.WaitErr())
	}
	return p, nil
}

// Stop terminates the capture with the standard two-phase protocol. The
// pcap file is only valid once Stop has returned; tcpdump flushes its
// buffer on SIGTERM.
func (m *Manager) Stop(p *proc.Process, grace time.Duration) proc.StopOutcome {
	return m.sup.Stop(p, grace)
}
