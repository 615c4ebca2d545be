// Package run owns the whole-run lifecycle: pre-flight checks, the
// scenario loop, the process-wide exit guard and the final summary.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"impairbench/internal/artifact"
	"impairbench/internal/capture"
	"impairbench/internal/config"
	"impairbench/internal/logging"
	"impairbench/internal/netem"
	"impairbench/internal/proc"
	"impairbench/internal/scenario"
)

// ErrPreflight marks failures that abort the run before any scenario
// starts; they are the only failures that produce a non-zero exit.
var ErrPreflight = errors.New("run: pre-flight check failed")

// stopAllGrace is the grace period the exit guard gives each process.
// The guard must finish even with uncooperative children, so it is
// short.
const stopAllGrace = 500 * time.Millisecond

// Report summarizes one whole run.
type Report struct {
	RunID       string
	Stamp       string
	Started     time.Time
	Interrupted bool
	Scenarios   []artifact.ScenarioSummary
}

// Controller iterates the scenario catalog. One Controller runs at most
// once.
type Controller struct {
	cfg      *config.RunConfig
	layout   artifact.Layout
	sup      *proc.Supervisor
	impairer scenario.Impairer
	capturer scenario.Capturer

	// Pre-flight probes, injectable in tests.
	geteuid     func() int
	lookPath    func(string) (string, error)
	ifaceByName func(string) error

	// Runner timing override hook for tests; nil keeps production
	// defaults.
	tuneRunner func(*scenario.Runner)

	lock *proc.RunLock
}

// New wires a Controller against the real host facilities.
func New(cfg *config.RunConfig) *Controller {
	sup := proc.NewSupervisor()
	return &Controller{
		cfg:      cfg,
		layout:   artifact.Layout{Root: cfg.OutputDir},
		sup:      sup,
		impairer: netem.New(cfg.Interface),
		capturer: capture.NewManager(sup),
		geteuid:  os.Geteuid,
		lookPath: exec.LookPath,
		ifaceByName: func(name string) error {
			_, err := net.InterfaceByName(name)
			return err
		},
	}
}

// Preflight validates privilege, required tools, the interface and the
// artifact directories, then takes the single-instance lock. Everything
// it rejects would otherwise fail mid-run with rules half-applied.
func (c *Controller) Preflight(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if c.geteuid() != 0 {
		return fmt.Errorf("%w: applying netem rules requires root", ErrPreflight)
	}
	if _, err := c.lookPath("tc"); err != nil {
		return fmt.Errorf("%w: tc not found in PATH", ErrPreflight)
	}
	if err := c.ifaceByName(c.cfg.Interface); err != nil {
		return fmt.Errorf("%w: interface %q: %v", ErrPreflight, c.cfg.Interface, err)
	}
	if err := c.layout.EnsureDirs(); err != nil {
		return fmt.Errorf("%w: %v", ErrPreflight, err)
	}
	if _, err := c.lookPath("tcpdump"); err != nil {
		log.Warn("tcpdump not found; scenarios will run without packet captures")
	}

	lock, err := proc.AcquireLock(c.layout.LockFile())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPreflight, err)
	}
	c.lock = lock
	return nil
}

// Run executes the configured scenario catalog sequentially. It returns
// a Report even when scenarios degraded or were interrupted; only
// pre-flight and catalog-resolution failures return an error.
//
// The exit guard is installed here, once, around the whole run: on any
// exit path the impairment rule is cleared and every tracked process is
// force-stopped, so an aborted run cannot leave the host degraded.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	log := logging.FromContext(ctx)

	if err := c.Preflight(ctx); err != nil {
		return nil, err
	}
	defer c.shutdown(log)

	started := time.Now()
	stamp := started.Format("20060102_150405")
	specs, err := scenario.BuildCatalog(stamp, c.cfg.Scenarios)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreflight, err)
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Stamp:   stamp,
		Started: started,
	}
	log.Info("run starting",
		"run_id", report.RunID,
		"interface", c.cfg.Interface,
		"clients", c.cfg.NumClients,
		"duration_s", c.cfg.DurationSeconds,
		"scenarios", len(specs))

	runner := scenario.NewRunner(c.cfg, c.impairer, c.capturer, c.sup, c.layout)
	if c.tuneRunner != nil {
		c.tuneRunner(runner)
	}

	for _, spec := range specs {
		if ctx.Err() != nil {
			report.Interrupted = true
			log.Warn("run interrupted, skipping remaining scenarios")
			break
		}
		rep := runner.Run(ctx, spec)

		stats, err := artifact.ComputeStats(c.layout.MergedCSV(spec.OutputPrefix))
		if err != nil {
			log.Warn("stats computation failed", "scenario", spec.Name, "err", err)
		}
		rule, _ := netem.Lookup(ruleOrBaseline(spec.Rule))
		report.Scenarios = append(report.Scenarios, artifact.ScenarioSummary{
			Name:         spec.Name,
			Rule:         rule.String(),
			Prefix:       spec.OutputPrefix,
			ServerFatal:  rep.ServerFatal,
			Degradations: rep.Degradations,
			Merge:        rep.Merge,
			Stats:        stats,
		})
	}

	if err := artifact.WriteSummary(c.layout.SummaryFile(), report.RunID, report.Started, report.Scenarios); err != nil {
		log.Warn("summary write failed", "err", err)
	}
	log.Info("run finished", "scenarios", len(report.Scenarios), "interrupted", report.Interrupted)
	return report, nil
}

// shutdown is the exit guard's teardown. It is unconditional and
// independent of how the run ended.
func (c *Controller) shutdown(log *slog.Logger) {
	if n := c.sup.StopAll(stopAllGrace); n > 0 {
		log.Warn("exit guard stopped processes", "count", n)
	}
	if err := c.impairer.Clear(context.Background()); err != nil {
		log.Warn("exit guard could not clear impairment", "err", err)
	}
	if c.lock != nil {
		if err := c.lock.Release(); err != nil {
			log.Warn("lock release failed", "err", err)
		}
		c.lock = nil
	}
}

func ruleOrBaseline(rule string) string {
	if rule == "" {
		return "baseline"
	}
	return rule
}
