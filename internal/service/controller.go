package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/benbjohnson/clock"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/descriptor"
	"xcbridgectl/internal/logger"
	"xcbridgectl/internal/logs"
)

// State is the controller's view of the agent during Start.
type State int

const (
	NotRegistered State = iota
	Registered
	Starting
	Running
	FailedToStart
)

func (s State) String() string {
	switch s {
	case NotRegistered:
		return "not-registered"
	case Registered:
		return "registered"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case FailedToStart:
		return "failed-to-start"
	default:
		return "unknown"
	}
}

// ErrProcessNotFound is the cause of a StartError when no process with
// the service identity exists after the grace period.
var ErrProcessNotFound = errors.New("service process not found after grace period")

// errorLogTailLines is how much of the error log a StartError quotes.
const errorLogTailLines = 10

// StartError reports that the agent was installed but did not come up.
// Installed files are left in place.
type StartError struct {
	Label    string
	ErrorLog string
	Tail     []string
	Err      error
}

func (e *StartError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "service %s failed to start: %v; check the error log at %s", e.Label, e.Err, e.ErrorLog)
	if len(e.Tail) > 0 {
		b.WriteString("\nlast lines of the error log:")
		for _, l := range e.Tail {
			b.WriteString("\n  ")
			b.WriteString(l)
		}
	}
	return b.String()
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Controller registers the agent with the supervisor and confirms it is
// alive.
type Controller struct {
	sup    Supervisor
	procs  ProcessTable
	clock  clock.Clock
	timing config.Timing
	probe  *HealthProbe
	state  State
}

// NewController returns a Controller. clk may be nil for the wall clock.
func NewController(sup Supervisor, procs ProcessTable, clk clock.Clock, timing config.Timing) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		sup:    sup,
		procs:  procs,
		clock:  clk,
		timing: timing,
	}
}

// WithHealthProbe makes Start also require a healthy /status response.
func (c *Controller) WithHealthProbe(p *HealthProbe) *Controller {
	c.probe = p
	return c
}

// State returns the state reached by the last Start.
func (c *Controller) State() State {
	return c.state
}

// Start replaces any loaded instance with the agent described by d and
// waits for its process to appear.
func (c *Controller) Start(ctx context.Context, target config.Target, d descriptor.Descriptor) error {
	log := logger.WithComponent("controller")
	c.state = NotRegistered

	outcome, err := c.sup.Unregister(ctx, d.Label)
	switch outcome {
	case Succeeded:
		log.Info().Str("label", d.Label).Msg("Unloaded previous instance")
		c.awaitPreviousExit(ctx, target.Identity)
	case NotApplicable:
		log.Debug().Str("label", d.Label).Msg("No previous instance loaded")
	case Failed:
		log.Warn().Err(err).Str("label", d.Label).Msg("Could not unload previous instance, continuing")
	}

	if err := descriptor.Write(target.DescriptorPath, d); err != nil {
		return err
	}
	log.Info().Str("path", target.DescriptorPath).Msg("Descriptor written")

	// launchd does not create missing log directories
	if err := os.MkdirAll(target.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", target.LogDir, err)
	}

	if _, err := c.sup.Register(ctx, target.DescriptorPath); err != nil {
		return c.fail(target, d.Label, err)
	}
	c.state = Registered
	log.Info().Str("label", d.Label).Msg("Service registered")

	c.state = Starting
	log.Info().Dur("grace_period", c.timing.StartGrace).Msg("Waiting for service to start")
	c.clock.Sleep(c.timing.StartGrace)

	pids, err := c.procs.Find(ctx, target.Identity)
	if err != nil {
		return c.fail(target, d.Label, fmt.Errorf("%w: %v", ErrProcessNotFound, err))
	}
	if len(pids) == 0 {
		return c.fail(target, d.Label, ErrProcessNotFound)
	}

	if c.probe != nil {
		status, err := c.probe.Wait(ctx)
		if err != nil {
			return c.fail(target, d.Label, err)
		}
		log.Info().Str("xcode_version", status.XcodeVersion).Msg("Service reports healthy")
	}

	c.state = Running
	log.Info().Ints32("pids", pids).Str("label", d.Label).Msg("Service is running")
	return nil
}

// awaitPreviousExit waits for an unloaded instance to go away so the
// liveness check after registration cannot mistake it for the new one.
func (c *Controller) awaitPreviousExit(ctx context.Context, identity string) {
	if waitForExit(ctx, c.procs, c.clock, identity, c.timing) {
		return
	}
	log := logger.WithComponent("controller")
	log.Warn().
		Str("warning", "GracefulStopTimedOut").
		Dur("waited", c.timing.StopBudget()).
		Msg("Previous instance did not exit in time, forcing termination")
	if _, err := c.procs.Kill(ctx, identity); err != nil {
		log.Warn().Err(err).Msg("Forced termination of previous instance failed")
	}
	c.clock.Sleep(c.timing.KillSettle)
}

func (c *Controller) fail(target config.Target, label string, cause error) error {
	c.state = FailedToStart
	tail, _ := logs.Tail(target.StderrLog, errorLogTailLines)
	err := &StartError{
		Label:    label,
		ErrorLog: target.StderrLog,
		Tail:     tail,
		Err:      cause,
	}
	log := logger.WithComponent("controller")
	log.Error().Err(cause).Str("error_log", target.StderrLog).Msg("Service failed to start")
	return err
}

// waitForExit checks for the process StopAttempts times, StopInterval
// apart, and reports whether it disappeared. A lookup error counts as
// still running.
func waitForExit(ctx context.Context, procs ProcessTable, clk clock.Clock, identity string, timing config.Timing) bool {
	log := logger.WithComponent("controller")
	for attempt := 1; attempt <= timing.StopAttempts; attempt++ {
		pids, err := procs.Find(ctx, identity)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Process lookup failed")
		} else if len(pids) == 0 {
			return true
		}
		clk.Sleep(timing.StopInterval)
	}
	return false
}
