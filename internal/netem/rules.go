package netem

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Rule is one named netem configuration. Params holds the arguments passed
// to "tc qdisc add dev <iface> root netem"; an empty Params means baseline
// (no rule is installed).
type Rule struct {
	Name        string
	Description string
	Params      []string
}

// Baseline reports whether the rule installs no qdisc at all.
func (r Rule) Baseline() bool {
	return len(r.Params) == 0
}

func (r Rule) String() string {
	if r.Baseline() {
		return r.Name + " (no impairment)"
	}
	return r.Name + " (" + strings.Join(r.Params, " ") + ")"
}

// CustomPrefix selects a caller-supplied rule: everything after the colon is
// tokenized and applied verbatim, with no validation beyond tokenization.
const CustomPrefix = "custom:"

// Catalog returns the built-in rules in their canonical order.
func Catalog() []Rule {
	return []Rule{
		{Name: "baseline", Description: "no degradation"},
		{Name: "loss_2", Description: "2% independent packet loss", Params: []string{"loss", "2%"}},
		{Name: "loss_5", Description: "5% independent packet loss", Params: []string{"loss", "5%"}},
		{Name: "delay_100", Description: "fixed 100ms one-way delay", Params: []string{"delay", "100ms"}},
		{Name: "loss_delay", Description: "2% loss with 50ms delay", Params: []string{"loss", "2%", "delay", "50ms"}},
		{Name: "jitter", Description: "50ms delay with 10ms variance", Params: []string{"delay", "50ms", "10ms"}},
	}
}

// Lookup resolves a rule name from the catalog, or a "custom:<params>" rule.
func Lookup(name string) (Rule, error) {
	if params, ok := strings.CutPrefix(name, CustomPrefix); ok {
		argv, err := shlex.Split(params)
		if err != nil {
			return Rule{}, fmt.Errorf("netem: parse custom rule %q: %w", params, err)
		}
		if len(argv) == 0 {
			return Rule{}, fmt.Errorf("netem: custom rule has no parameters")
		}
		return Rule{Name: "custom", Description: "caller-supplied parameters", Params: argv}, nil
	}
	for _, r := range Catalog() {
		if r.Name == name {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("netem: %w: %q", ErrUnknownRule, name)
}
