// Package scenario sequences one impairment scenario end to end:
// apply rule, start capture, start server, run clients, drain, stop,
// merge, clear.
package scenario

import (
	"fmt"
	"strings"

	"impairbench/internal/netem"
)

// Spec names one scenario of a run. It is immutable once built.
type Spec struct {
	// Name is the catalog entry, e.g. "loss_2" or "custom".
	Name string
	// Rule is the netem rule name; empty means baseline.
	Rule string
	// OutputPrefix namespaces every artifact the scenario produces.
	// It is unique within a run; a collision would silently overwrite
	// another scenario's files.
	OutputPrefix string
}

// BuildCatalog resolves scenario names against the rule catalog and
// assigns each a unique output prefix derived from the run stamp. An
// empty names slice selects every built-in rule.
func BuildCatalog(runStamp string, names []string) ([]Spec, error) {
	if len(names) == 0 {
		for _, r := range netem.Catalog() {
			names = append(names, r.Name)
		}
	}
	specs := make([]Spec, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		rule, err := netem.Lookup(name)
		if err != nil {
			return nil, err
		}
		prefix := runStamp + "_" + Slug(name)
		if seen[prefix] {
			return nil, fmt.Errorf("scenario: duplicate output prefix %q", prefix)
		}
		seen[prefix] = true
		specs = append(specs, Spec{Name: rule.Name, Rule: name, OutputPrefix: prefix})
	}
	return specs, nil
}

// Slug reduces a scenario name to a filesystem-safe token.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// State is one position in the runner's linear state machine. Degraded
// sub-steps still advance forward; the pipeline is best-effort, not
// transactional.
type State int

const (
	Idle State = iota
	ImpairmentApplied
	CaptureStarted
	ServerStarted
	ClientsRunning
	Draining
	ServerStopped
	CaptureStopped
	Merged
	ImpairmentCleared
	Done
)

var stateNames = [...]string{
	"idle", "impairment-applied", "capture-started", "server-started",
	"clients-running", "draining", "server-stopped", "capture-stopped",
	"merged", "impairment-cleared", "done",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
