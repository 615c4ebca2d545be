package capture

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"impairbench/internal/proc"
)

// fakeTool writes an executable shell script and returns its path.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tcpdump")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func newTestManager(sup *proc.Supervisor, bin string, lookErr error) *Manager {
	m := NewManager(sup)
	m.settle = 50 * time.Millisecond
	m.lookPath = func(string) (string, error) {
		if lookErr != nil {
			return "", lookErr
		}
		return bin, nil
	}
	return m
}

func TestStartUnavailable(t *testing.T) {
	m := newTestManager(proc.NewSupervisor(), "", exec.ErrNotFound)
	_, err := m.Start("eth0", 12000, "out.pcap", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestStartConfirmsLiveness(t *testing.T) {
	sup := proc.NewSupervisor()
	bin := fakeTool(t, "sleep 30")
	m := newTestManager(sup, bin, nil)
	p, err := m.Start("eth0", 12000, filepath.Join(t.TempDir(), "x.pcap"), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.Alive() {
		t.Error("capture should be alive after settle")
	}
	if got := m.Stop(p, time.Second); got == proc.AlreadyDead {
		t.Errorf("unexpected stop outcome %v", got)
	}
}

func TestStartReportsEarlyExit(t *testing.T) {
	sup := proc.NewSupervisor()
	bin := fakeTool(t, "echo 'bad filter' >&2; exit 1")
	m := newTestManager(sup, bin, nil)
	if _, err := m.Start("eth0", 12000, "x.pcap", ""); err == nil {
		t.Fatal("expected error for capture that exits immediately")
	}
}
