package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"impairbench/internal/artifact"
	"impairbench/internal/capture"
	"impairbench/internal/config"
	"impairbench/internal/logging"
	"impairbench/internal/netem"
	"impairbench/internal/proc"
)

// Impairer is the slice of the netem controller the runner needs.
type Impairer interface {
	Apply(ctx context.Context, rule netem.Rule) error
	Clear(ctx context.Context) error
}

// Capturer is the slice of the capture manager the runner needs.
type Capturer interface {
	Start(iface string, port int, outPath, logPath string) (*proc.Process, error)
	Stop(p *proc.Process, grace time.Duration) proc.StopOutcome
}

// Report is what one scenario leaves behind. Failures along the way are
// accumulated here and surfaced in the run summary; only ServerFatal
// aborts the scenario's measurement phase, and even then cleanup, merge
// and clear still run.
type Report struct {
	Spec     Spec
	State    State
	Started  time.Time
	Finished time.Time

	ImpairmentConfirmed bool
	ServerFatal         bool
	Degradations        []string
	Merge               artifact.MergeReport
}

// Runner drives the per-scenario state machine. The process handles it
// creates are threaded through local state, never stored globally.
type Runner struct {
	cfg      *config.RunConfig
	impairer Impairer
	capturer Capturer
	sup      *proc.Supervisor
	layout   artifact.Layout

	// Timing knobs, overridable in tests.
	ServerStartupWait time.Duration
	ClientStagger     time.Duration
	JoinMargin        time.Duration
	DrainWait         time.Duration
	StopGrace         time.Duration
}

// NewRunner returns a Runner with production timing.
func NewRunner(cfg *config.RunConfig, impairer Impairer, capturer Capturer, sup *proc.Supervisor, layout artifact.Layout) *Runner {
	return &Runner{
		cfg:      cfg,
		impairer: impairer,
		capturer: capturer,
		sup:      sup,
		layout:   layout,

		ServerStartupWait: 2 * time.Second,
		ClientStagger:     500 * time.Millisecond,
		JoinMargin:        10 * time.Second,
		DrainWait:         2 * time.Second,
		StopGrace:         5 * time.Second,
	}
}

// Run executes spec. It always reaches Done exactly once, and the
// interface never leaves this function with a rule still installed.
func (r *Runner) Run(ctx context.Context, spec Spec) Report {
	log := logging.FromContext(ctx).With("scenario", spec.Name, "prefix", spec.OutputPrefix)
	rep := Report{Spec: spec, Started: time.Now(), State: Idle}

	degrade := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		rep.Degradations = append(rep.Degradations, msg)
		log.Warn(msg)
	}

	// Impairment. A scenario run under accidentally-unimpaired
	// conditions still yields usable data, so failure here degrades
	// rather than aborts.
	ruleName := spec.Rule
	if ruleName == "" {
		ruleName = "baseline"
	}
	rule, err := netem.Lookup(ruleName)
	if err != nil {
		degrade("impairment not confirmed: %v", err)
	} else if err := r.impairer.Apply(ctx, rule); err != nil {
		degrade("impairment not confirmed: %v", err)
	} else {
		rep.ImpairmentConfirmed = true
		log.Info("impairment applied", "rule", rule.String())
	}
	rep.State = ImpairmentApplied

	// Capture, best-effort.
	var capProc *proc.Process
	capProc, err = r.capturer.Start(r.cfg.Interface, r.cfg.Port, r.layout.Pcap(spec.OutputPrefix), r.layout.CaptureLog(spec.OutputPrefix))
	switch {
	case errors.Is(err, capture.ErrUnavailable):
		degrade("capture unavailable, continuing without packet trace")
	case err != nil:
		degrade("capture failed to start: %v", err)
	default:
		log.Info("capture started", "pid", capProc.PID)
	}
	rep.State = CaptureStarted

	// Server. No clients can run without it, so this is the one
	// scenario-fatal step.
	server := r.startServer(ctx, spec, log, &rep)
	if server != nil {
		rep.State = ServerStarted
	}

	// Clients.
	var clients []*proc.Process
	if server != nil {
		clients = r.startClients(ctx, spec, log, degrade)
		rep.State = ClientsRunning
		r.joinClients(ctx, clients, log, degrade)
	}

	// Drain: let final metric flushes land on disk.
	sleepCtx(ctx, r.DrainWait)
	rep.State = Draining

	// Stop server then capture, independent of each other's outcome.
	if server != nil {
		outcome := r.sup.Stop(server, r.StopGrace)
		log.Info("server stopped", "outcome", outcome.String())
	}
	rep.State = ServerStopped

	if capProc != nil {
		outcome := r.capturer.Stop(capProc, r.StopGrace)
		log.Info("capture stopped", "outcome", outcome.String())
	}
	rep.State = CaptureStopped

	// Merge whatever client files exist.
	inputs := make([]string, 0, r.cfg.NumClients)
	for i := 1; i <= r.cfg.NumClients; i++ {
		inputs = append(inputs, r.layout.ClientCSV(spec.OutputPrefix, i))
	}
	merge, err := artifact.Merge(inputs, r.layout.MergedCSV(spec.OutputPrefix))
	if err != nil {
		degrade("merge failed: %v", err)
	} else if len(merge.Skipped) > 0 && server != nil {
		degrade("%d client file(s) missing or empty", len(merge.Skipped))
	}
	rep.Merge = merge
	rep.State = Merged

	// Clear always runs, even after failures and even when ctx was
	// canceled, so no scenario exits with a rule still installed.
	if err := r.impairer.Clear(context.WithoutCancel(ctx)); err != nil {
		degrade("impairment clear failed: %v", err)
	}
	rep.State = ImpairmentCleared

	rep.Finished = time.Now()
	rep.State = Done
	log.Info("scenario done",
		"impairment_confirmed", rep.ImpairmentConfirmed,
		"server_fatal", rep.ServerFatal,
		"merged_rows", rep.Merge.Rows,
		"degradations", len(rep.Degradations))
	return rep
}

// startServer spawns the server and confirms it survives the startup
// window. On any failure it marks the scenario fatal and returns nil.
func (r *Runner) startServer(ctx context.Context, spec Spec, log *slog.Logger, rep *Report) *proc.Process {
	fatal := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		rep.ServerFatal = true
		rep.Degradations = append(rep.Degradations, msg)
		log.Warn(msg)
	}

	argv, err := r.cfg.ServerArgv()
	if err != nil {
		fatal("server not started: %v", err)
		return nil
	}
	env := []string{"METRICS_OUTPUT_DIR=" + r.layout.ServerMetricsDir()}
	server, err := r.sup.Spawn(proc.KindServer, argv, env, r.layout.ServerLog(spec.OutputPrefix))
	if err != nil {
		fatal("server not started: %v", err)
		return nil
	}

	sleepCtx(ctx, r.ServerStartupWait)
	if !server.Alive() {
		fatal("server exited during startup (see %s)", server.LogPath)
		return nil
	}
	return server
}

// startClients launches the configured number of clients, staggered so
// their initial bursts do not hit the server at once.
func (r *Runner) startClients(ctx context.Context, spec Spec, log *slog.Logger, degrade func(string, ...any)) []*proc.Process {
	base, err := r.cfg.ClientArgv()
	if err != nil {
		degrade("clients not started: %v", err)
		return nil
	}

	var clients []*proc.Process
	for i := 1; i <= r.cfg.NumClients; i++ {
		argv := append(append([]string{}, base...),
			"--client-id", strconv.Itoa(i),
			"--duration", strconv.Itoa(r.cfg.DurationSeconds),
			"--output", r.layout.ClientCSV(spec.OutputPrefix, i),
		)
		p, err := r.sup.Spawn(proc.KindClient, argv, nil, r.layout.ClientLog(spec.OutputPrefix, i))
		if err != nil {
			degrade("client %d failed to start: %v", i, err)
			continue
		}
		clients = append(clients, p)
		log.Info("client started", "client", i, "pid", p.PID)
		if i < r.cfg.NumClients {
			sleepCtx(ctx, r.ClientStagger)
		}
	}
	return clients
}

// joinClients waits for every client to exit, bounded by the advisory
// duration plus a margin. Clients are self-terminating; one that hangs
// past the deadline is killed so it cannot stall the whole run. An
// interrupted run stops waiting immediately and kills the stragglers.
func (r *Runner) joinClients(ctx context.Context, clients []*proc.Process, log *slog.Logger, degrade func(string, ...any)) {
	deadline := time.Now().Add(r.cfg.Duration() + r.JoinMargin)
	for i, p := range clients {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		select {
		case <-p.Done():
		case <-ctx.Done():
			if r.sup.Stop(p, 0) != proc.AlreadyDead {
				degrade("client %d killed: run interrupted", i+1)
			}
			continue
		case <-time.After(remaining):
			if r.sup.Stop(p, 0) != proc.AlreadyDead {
				degrade("client %d exceeded its duration and was killed", i+1)
				continue
			}
			// Exited right at the deadline; treat as finished.
		}
		if err := p.WaitErr(); err != nil {
			degrade("client %d exited with error: %v", i+1, err)
		} else {
			log.Info("client finished", "client", i+1)
		}
	}
}

// sleepCtx sleeps for d unless ctx is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
