package artifact

import (
	"bufio"
	"fmt"
	"os"
)

// MergeReport describes the outcome of one merge.
type MergeReport struct {
	Output  string
	Written bool
	// MergedFiles counts inputs that contributed rows or at least a
	// header; Skipped lists inputs that were absent or empty.
	MergedFiles int
	Rows        int
	Skipped     []string
}

// Merge concatenates the client result files in index order into output.
// The header line comes from the first input that exists and is
// non-empty and is written exactly once; each input's own header line is
// dropped. Absent or empty inputs are skipped and recorded, never
// treated as errors. When every input is absent no output file is
// written at all, so a partial run can never masquerade as a complete
// dataset.
func Merge(inputs []string, output string) (MergeReport, error) {
	report := MergeReport{Output: output}

	first := -1
	for i, path := range inputs {
		if nonEmpty(path) {
			first = i
			break
		}
	}
	if first < 0 {
		report.Skipped = append(report.Skipped, inputs...)
		return report, nil
	}

	out, err := os.Create(output)
	if err != nil {
		return report, fmt.Errorf("artifact: create %s: %w", output, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	headerWritten := false
	for _, path := range inputs {
		if !nonEmpty(path) {
			report.Skipped = append(report.Skipped, path)
			continue
		}
		rows, header, err := appendBody(w, path, headerWritten)
		if err != nil {
			return report, err
		}
		if header {
			headerWritten = true
		}
		report.MergedFiles++
		report.Rows += rows
	}

	if err := w.Flush(); err != nil {
		return report, fmt.Errorf("artifact: flush %s: %w", output, err)
	}
	report.Written = true
	return report, nil
}

// appendBody copies path's lines to w, dropping the leading header line.
// When writeHeader is still pending the header is copied through once.
func appendBody(w *bufio.Writer, path string, headerWritten bool) (rows int, wroteHeader bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	firstLine := true
	for sc.Scan() {
		line := sc.Text()
		if firstLine {
			firstLine = false
			if !headerWritten {
				fmt.Fprintln(w, line)
				wroteHeader = true
			}
			continue
		}
		if line == "" {
			continue
		}
		fmt.Fprintln(w, line)
		rows++
	}
	if err := sc.Err(); err != nil {
		return rows, wroteHeader, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	return rows, wroteHeader, nil
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
