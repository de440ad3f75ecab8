package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/logger"
)

// StopOutcome is how Stop left the agent.
type StopOutcome int

const (
	AlreadyAbsent StopOutcome = iota
	Stopped
	ForceKilled
	StillRunning
)

func (o StopOutcome) String() string {
	switch o {
	case AlreadyAbsent:
		return "already-absent"
	case Stopped:
		return "stopped"
	case ForceKilled:
		return "force-killed"
	case StillRunning:
		return "still-running"
	default:
		return "unknown"
	}
}

// RemovalStatus is the result of removing one installed file.
type RemovalStatus int

const (
	Removed RemovalStatus = iota
	Absent
	RemoveFailed
)

func (s RemovalStatus) String() string {
	switch s {
	case Removed:
		return "removed"
	case Absent:
		return "absent"
	case RemoveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Removal records what happened to a single path.
type Removal struct {
	Path   string
	Status RemovalStatus
	Err    error
}

// RemovalReport covers the installed binary and the descriptor.
type RemovalReport struct {
	Binary     Removal
	Descriptor Removal
}

// Err joins the failures in the report, or returns nil.
func (r RemovalReport) Err() error {
	return errors.Join(r.Binary.Err, r.Descriptor.Err)
}

// PurgeMode selects how PurgeLogs treats the log files.
type PurgeMode int

const (
	PurgeKeep PurgeMode = iota
	PurgeForce
	PurgePrompt
)

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(question string) bool
}

// Uninstaller stops the agent and removes what Install created. Every
// step is idempotent.
type Uninstaller struct {
	sup    Supervisor
	procs  ProcessTable
	clock  clock.Clock
	timing config.Timing
}

// NewUninstaller returns an Uninstaller. clk may be nil for the wall clock.
func NewUninstaller(sup Supervisor, procs ProcessTable, clk clock.Clock, timing config.Timing) *Uninstaller {
	if clk == nil {
		clk = clock.New()
	}
	return &Uninstaller{
		sup:    sup,
		procs:  procs,
		clock:  clk,
		timing: timing,
	}
}

// Stop unloads the agent, waits up to the stop budget for its process to
// exit, and force-kills it after that.
func (u *Uninstaller) Stop(ctx context.Context, target config.Target) StopOutcome {
	log := logger.WithComponent("uninstaller")

	if _, err := os.Stat(target.DescriptorPath); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", target.DescriptorPath).Msg("No descriptor installed, nothing to stop")
		return AlreadyAbsent
	}

	outcome, err := u.sup.Unregister(ctx, target.Label)
	switch outcome {
	case Succeeded:
		log.Info().Str("label", target.Label).Msg("Service unloaded")
	case NotApplicable:
		log.Info().Str("label", target.Label).Msg("Service was not loaded")
	case Failed:
		log.Warn().Err(err).Str("label", target.Label).Msg("Unload failed, continuing")
	}

	if waitForExit(ctx, u.procs, u.clock, target.Identity, u.timing) {
		return Stopped
	}

	log.Warn().
		Str("warning", "GracefulStopTimedOut").
		Dur("waited", u.timing.StopBudget()).
		Msg("Service did not exit in time, forcing termination")
	n, err := u.procs.Kill(ctx, target.Identity)
	if err != nil {
		log.Warn().Err(err).Msg("Forced termination reported errors")
	}
	u.clock.Sleep(u.timing.KillSettle)

	pids, err := u.procs.Find(ctx, target.Identity)
	if err != nil || len(pids) > 0 {
		log.Error().Err(err).Ints32("pids", pids).Msg("Service is still running")
		return StillRunning
	}
	log.Info().Int("killed", n).Msg("Service terminated")
	return ForceKilled
}

// RemoveFiles deletes the installed binary and the descriptor. Missing
// files are reported as Absent.
func (u *Uninstaller) RemoveFiles(target config.Target) RemovalReport {
	return RemovalReport{
		Binary:     removeFile(target.BinaryPath),
		Descriptor: removeFile(target.DescriptorPath),
	}
}

func removeFile(path string) Removal {
	log := logger.WithComponent("uninstaller")
	err := os.Remove(path)
	switch {
	case err == nil:
		log.Info().Str("path", path).Msg("Removed")
		return Removal{Path: path, Status: Removed}
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("path", path).Msg("Already absent")
		return Removal{Path: path, Status: Absent}
	default:
		log.Error().Err(err).Str("path", path).Msg("Failed to remove")
		return Removal{Path: path, Status: RemoveFailed, Err: fmt.Errorf("failed to remove %s: %w", path, err)}
	}
}

// PurgeLogs deletes the service log files according to mode and returns
// the paths it removed. The prompt is shown only when a log file exists.
// The log directory is removed too once it is empty.
func (u *Uninstaller) PurgeLogs(target config.Target, mode PurgeMode, p Prompter) ([]string, error) {
	log := logger.WithComponent("uninstaller")
	if mode == PurgeKeep {
		return nil, nil
	}

	var present []string
	for _, path := range target.LogFiles() {
		if _, err := os.Stat(path); err == nil {
			present = append(present, path)
		}
	}
	if len(present) == 0 {
		removeEmptyDir(target.LogDir)
		return nil, nil
	}

	if mode == PurgePrompt {
		if p == nil || !p.Confirm(fmt.Sprintf("Remove service logs in %s?", target.LogDir)) {
			log.Info().Str("dir", target.LogDir).Msg("Keeping service logs")
			return nil, nil
		}
	}

	var removed []string
	var errs []error
	for _, path := range present {
		r := removeFile(path)
		switch r.Status {
		case Removed:
			removed = append(removed, path)
		case RemoveFailed:
			errs = append(errs, r.Err)
		}
	}
	removeEmptyDir(target.LogDir)
	return removed, errors.Join(errs...)
}

// removeEmptyDir removes dir only if it has no entries left.
func removeEmptyDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err == nil {
		log := logger.WithComponent("uninstaller")
		log.Debug().Str("dir", dir).Msg("Removed empty log directory")
	}
}
