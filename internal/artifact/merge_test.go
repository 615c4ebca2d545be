package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestMergeConcatenatesInIndexOrder(t *testing.T) {
	dir := t.TempDir()
	c1 := filepath.Join(dir, "c1.csv")
	c2 := filepath.Join(dir, "c2.csv")
	out := filepath.Join(dir, "merged.csv")
	writeFile(t, c1, "h1,h2\na1,a2\na3,a4\n")
	writeFile(t, c2, "h1,h2\nb1,b2\n")

	report, err := Merge([]string{c1, c2}, out)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.Written || report.MergedFiles != 2 || report.Rows != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	want := "h1,h2\na1,a2\na3,a4\nb1,b2\n"
	if diff := cmp.Diff(want, string(b)); diff != "" {
		t.Errorf("merged content mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSkipsAbsentAndEmpty(t *testing.T) {
	dir := t.TempDir()
	c1 := filepath.Join(dir, "c1.csv") // never created
	c2 := filepath.Join(dir, "c2.csv")
	c3 := filepath.Join(dir, "c3.csv") // empty
	out := filepath.Join(dir, "merged.csv")
	writeFile(t, c2, "h\nr1\n")
	writeFile(t, c3, "")

	report, err := Merge([]string{c1, c2, c3}, out)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.MergedFiles != 1 || report.Rows != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if diff := cmp.Diff([]string{c1, c3}, report.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	b, _ := os.ReadFile(out)
	if string(b) != "h\nr1\n" {
		t.Errorf("unexpected merged content: %q", b)
	}
}

func TestMergeHeaderFromFirstExisting(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.csv")
	c2 := filepath.Join(dir, "c2.csv")
	out := filepath.Join(dir, "merged.csv")
	writeFile(t, c2, "the,header\nrow,1\n")

	if _, err := Merge([]string{missing, c2}, out); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	b, _ := os.ReadFile(out)
	if string(b) != "the,header\nrow,1\n" {
		t.Errorf("header should come from first existing file, got %q", b)
	}
}

func TestMergeAllAbsentWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "merged.csv")
	report, err := Merge([]string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, out)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Written || report.MergedFiles != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output file should exist when every input is absent")
	}
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/runs"}
	cases := map[string]string{
		l.ClientCSV("p", 2):  "/runs/results/p_client2.csv",
		l.MergedCSV("p"):     "/runs/results/p_merged.csv",
		l.ServerLog("p"):     "/runs/logs/p_server.log",
		l.ClientLog("p", 1):  "/runs/logs/p_client1.log",
		l.Pcap("p"):          "/runs/pcaps/p.pcap",
		l.SummaryFile():      "/runs/results/test_summary.txt",
		l.ServerMetricsDir(): "/runs/server_metrics",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("layout path mismatch: got %q want %q", got, want)
		}
	}
}
