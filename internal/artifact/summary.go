package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/montanaflynn/stats"
)

// Stats holds the advisory headline numbers for one merged dataset.
type Stats struct {
	Samples         int
	LatencyMeanMS   float64
	LatencyMedianMS float64
	LatencyP95MS    float64
	JitterMeanMS    float64
}

// ScenarioSummary is one scenario's line in the run summary.
type ScenarioSummary struct {
	Name         string
	Rule         string
	Prefix       string
	ServerFatal  bool
	Degradations []string
	Merge        MergeReport
	Stats        Stats
}

// ComputeStats parses a merged CSV and computes latency and jitter
// aggregates. Unparseable rows are skipped; an absent merged file yields
// zero-valued stats, matching a scenario that produced no data.
func ComputeStats(mergedPath string) (Stats, error) {
	f, err := os.Open(mergedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("artifact: open %s: %w", mergedPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var latencies, jitters []float64
	firstRow := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, fmt.Errorf("artifact: parse %s: %w", mergedPath, err)
		}
		if firstRow {
			firstRow = false
			continue
		}
		if len(rec) <= colJitterMS {
			continue
		}
		lat, errL := strconv.ParseFloat(rec[colLatencyMS], 64)
		jit, errJ := strconv.ParseFloat(rec[colJitterMS], 64)
		if errL != nil || errJ != nil {
			continue
		}
		latencies = append(latencies, lat)
		jitters = append(jitters, jit)
	}

	s := Stats{Samples: len(latencies)}
	if s.Samples == 0 {
		return s, nil
	}
	s.LatencyMeanMS, _ = stats.Mean(latencies)
	s.LatencyMedianMS, _ = stats.Median(latencies)
	s.LatencyP95MS, _ = stats.Percentile(latencies, 95)
	s.JitterMeanMS, _ = stats.Mean(jitters)
	return s, nil
}

// WriteSummary writes the run-wide advisory summary file. It documents
// what happened; it is not a pass/fail gate.
func WriteSummary(path, runID string, started time.Time, scenarios []ScenarioSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "impairbench run %s\n", runID)
	fmt.Fprintf(&b, "started: %s\n", started.Format(time.RFC3339))
	fmt.Fprintf(&b, "scenarios: %d\n\n", len(scenarios))

	for _, s := range scenarios {
		fmt.Fprintf(&b, "[%s]\n", s.Name)
		fmt.Fprintf(&b, "  rule:    %s\n", s.Rule)
		fmt.Fprintf(&b, "  prefix:  %s\n", s.Prefix)
		fmt.Fprintf(&b, "  clients: %d merged, %d rows\n", s.Merge.MergedFiles, s.Merge.Rows)
		if s.Stats.Samples > 0 {
			fmt.Fprintf(&b, "  latency: mean %.2fms median %.2fms p95 %.2fms\n",
				s.Stats.LatencyMeanMS, s.Stats.LatencyMedianMS, s.Stats.LatencyP95MS)
			fmt.Fprintf(&b, "  jitter:  mean %.2fms\n", s.Stats.JitterMeanMS)
		}
		if s.ServerFatal {
			fmt.Fprintf(&b, "  FAILED: server did not start\n")
		}
		for _, d := range s.Degradations {
			fmt.Fprintf(&b, "  degraded: %s\n", d)
		}
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("artifact: write summary: %w", err)
	}
	return nil
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Render formats the scenario summaries as a terminal table. When styled
// is false (output piped) all styling is dropped.
func Render(scenarios []ScenarioSummary, styled bool) string {
	style := func(st lipgloss.Style, s string) string {
		if !styled {
			return s
		}
		return st.Render(s)
	}

	var b strings.Builder
	fmt.Fprintln(&b, style(headerStyle,
		fmt.Sprintf("%-12s %-8s %6s %8s %10s %10s", "SCENARIO", "STATUS", "FILES", "ROWS", "LAT(ms)", "P95(ms)")))
	for _, s := range scenarios {
		status := style(okStyle, "ok")
		switch {
		case s.ServerFatal:
			status = style(failedStyle, "failed")
		case len(s.Degradations) > 0:
			status = style(degradedStyle, "degraded")
		}
		fmt.Fprintf(&b, "%-12s %-8s %6d %8d %10.2f %10.2f\n",
			s.Name, status, s.Merge.MergedFiles, s.Merge.Rows,
			s.Stats.LatencyMeanMS, s.Stats.LatencyP95MS)
	}
	return b.String()
}
