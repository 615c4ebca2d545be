// Package artifact owns the per-run filesystem layout, the per-scenario
// CSV merge, and the final summary.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Header is the fixed client result schema, written identically by every
// client of a run. Column order is significant; the analysis tooling
// addresses columns by name and position.
const Header = "client_id,snapshot_id,seq_num,server_timestamp_ms,recv_time_ms,latency_ms,jitter_ms,perceived_position_error,cpu_percent,bandwidth_per_client_kbps"

// Column indexes into Header used by the summary statistics.
const (
	colLatencyMS = 5
	colJitterMS  = 6
)

// Layout maps a run's artifacts under one root directory. Every path is
// namespaced by a scenario's output prefix, so two scenarios of one run
// can never collide.
type Layout struct {
	Root string
}

// EnsureDirs creates the artifact directories.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.ResultsDir(), l.LogsDir(), l.PcapsDir(), l.ServerMetricsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("artifact: create %s: %w", d, err)
		}
	}
	return nil
}

func (l Layout) ResultsDir() string       { return filepath.Join(l.Root, "results") }
func (l Layout) LogsDir() string          { return filepath.Join(l.Root, "logs") }
func (l Layout) PcapsDir() string         { return filepath.Join(l.Root, "pcaps") }
func (l Layout) ServerMetricsDir() string { return filepath.Join(l.Root, "server_metrics") }

// ClientCSV is the result file written by client i (1-based).
func (l Layout) ClientCSV(prefix string, i int) string {
	return filepath.Join(l.ResultsDir(), fmt.Sprintf("%s_client%d.csv", prefix, i))
}

// MergedCSV is the per-scenario merged dataset.
func (l Layout) MergedCSV(prefix string) string {
	return filepath.Join(l.ResultsDir(), prefix+"_merged.csv")
}

func (l Layout) ServerLog(prefix string) string {
	return filepath.Join(l.LogsDir(), prefix+"_server.log")
}

func (l Layout) ClientLog(prefix string, i int) string {
	return filepath.Join(l.LogsDir(), fmt.Sprintf("%s_client%d.log", prefix, i))
}

func (l Layout) CaptureLog(prefix string) string {
	return filepath.Join(l.LogsDir(), prefix+"_capture.log")
}

func (l Layout) Pcap(prefix string) string {
	return filepath.Join(l.PcapsDir(), prefix+".pcap")
}

// SummaryFile is the run-wide advisory summary.
func (l Layout) SummaryFile() string {
	return filepath.Join(l.ResultsDir(), "test_summary.txt")
}

// LockFile is the single-instance lock for the run root.
func (l Layout) LockFile() string {
	return filepath.Join(l.Root, ".impairbench.lock")
}
