// Package netem drives tc(8) to impose synthetic network impairment
// (loss, delay, jitter) on a single interface.
//
// At most one netem qdisc exists per interface. Apply always clears the
// interface first, so rules never compose and a crashed prior run cannot
// contaminate the next measurement.
package netem

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrPermission marks a failure caused by missing privilege; it is
	// never retried.
	ErrPermission = errors.New("netem: operation not permitted")
	// ErrToolMissing marks an absent tc binary.
	ErrToolMissing = errors.New("netem: tc not found in PATH")
	// ErrUnknownRule marks a rule name outside the catalog.
	ErrUnknownRule = errors.New("netem: unknown rule")
)

// CommandRunner executes one external command and returns its combined
// output. It exists so tests can observe the exact tc invocations.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Controller applies and clears netem rules on one interface.
type Controller struct {
	iface string
	run   CommandRunner
}

// New returns a Controller for iface using the real tc binary.
func New(iface string) *Controller {
	return NewWithRunner(iface, execRunner{})
}

// NewWithRunner returns a Controller with an injected command runner.
func NewWithRunner(iface string, run CommandRunner) *Controller {
	return &Controller{iface: iface, run: run}
}

// Interface returns the interface the controller operates on.
func (c *Controller) Interface() string { return c.iface }

// Apply installs rule on the interface. The interface is unconditionally
// cleared first and any "nothing to clear" outcome is discarded; only the
// subsequent set step is reported. Applying a baseline rule reduces to a
// plain clear.
func (c *Controller) Apply(ctx context.Context, rule Rule) error {
	if err := c.Clear(ctx); err != nil {
		// Permission and missing-tool failures on clear will hit the
		// set step identically; surface them from there.
		if errors.Is(err, ErrPermission) || errors.Is(err, ErrToolMissing) {
			return err
		}
	}
	if rule.Baseline() {
		return nil
	}
	args := append([]string{"qdisc", "add", "dev", c.iface, "root", "netem"}, rule.Params...)
	out, err := c.run.Run(ctx, "tc", args...)
	if err != nil {
		return classify(fmt.Errorf("netem: apply %s on %s: %w (%s)", rule.Name, c.iface, err, trim(out)), out, err)
	}
	return nil
}

// Clear removes any qdisc from the interface. Clearing an interface that
// has no rule is a no-op success.
func (c *Controller) Clear(ctx context.Context) error {
	out, err := c.run.Run(ctx, "tc", "qdisc", "del", "dev", c.iface, "root")
	if err == nil {
		return nil
	}
	if noRuleOutput(out) {
		return nil
	}
	return classify(fmt.Errorf("netem: clear %s: %w (%s)", c.iface, err, trim(out)), out, err)
}

// Status returns tc's description of the current qdisc on the interface.
func (c *Controller) Status(ctx context.Context) (string, error) {
	out, err := c.run.Run(ctx, "tc", "qdisc", "show", "dev", c.iface)
	if err != nil {
		return "", classify(fmt.Errorf("netem: status %s: %w", c.iface, err), out, err)
	}
	return trim(out), nil
}

// noRuleOutput recognizes tc's complaints about deleting a rule that does
// not exist; older and newer iproute2 versions word it differently.
func noRuleOutput(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "No such file or directory") ||
		strings.Contains(s, "Cannot delete qdisc with handle of zero") ||
		strings.Contains(s, "Invalid handle")
}

func classify(wrapped error, out []byte, cause error) error {
	if errors.Is(cause, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrToolMissing, cause)
	}
	if strings.Contains(string(out), "Operation not permitted") {
		return fmt.Errorf("%w: %v", ErrPermission, wrapped)
	}
	return wrapped
}

func trim(out []byte) string {
	return strings.TrimSpace(string(out))
}
