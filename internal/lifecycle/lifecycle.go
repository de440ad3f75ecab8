// Package lifecycle runs the install and uninstall pipelines end to end.
//
// Each pipeline is strictly sequential. Pre-flight failures return before
// anything is written; warnings are logged and never abort a pipeline.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/descriptor"
	"xcbridgectl/internal/installer"
	"xcbridgectl/internal/locator"
	"xcbridgectl/internal/lock"
	"xcbridgectl/internal/logger"
	"xcbridgectl/internal/platform"
	"xcbridgectl/internal/service"
)

// PlatformValidator checks that the host can run the service.
type PlatformValidator interface {
	Validate(ctx context.Context) (platform.Info, error)
}

// BinaryLocator resolves the binary to install.
type BinaryLocator interface {
	Locate(explicit string) (locator.Result, error)
}

// Deps are the collaborators shared by every command.
type Deps struct {
	Validator  PlatformValidator
	Locator    BinaryLocator
	Supervisor service.Supervisor
	Processes  service.ProcessTable
	Prompter   service.Prompter
	Clock      clock.Clock
	Timing     config.Timing
	Target     config.Target
	// SearchPath is the operator's PATH, checked after install.
	SearchPath string
	// LockPath is the cross-invocation lock file. Empty disables locking.
	LockPath string
	// Out receives the operator-facing summary.
	Out io.Writer
}

func (d Deps) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}

// InstallOptions are install behaviours that are not service settings.
type InstallOptions struct {
	// HealthCheck also requires the service's /status endpoint to
	// report healthy before install succeeds.
	HealthCheck bool
}

// InstallReport describes a completed install.
type InstallReport struct {
	Platform   platform.Info
	Binary     locator.Result
	Descriptor descriptor.Descriptor
	OnPath     bool
}

// UninstallReport describes a completed uninstall.
type UninstallReport struct {
	Stop       service.StopOutcome
	Files      service.RemovalReport
	PurgedLogs []string
}

func withLock(path string, fn func() error) error {
	if path == "" {
		return fn()
	}
	l, err := lock.Acquire(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			log := logger.WithComponent("lifecycle")
			log.Warn().Err(err).Str("path", path).Msg("Failed to release lock")
		}
	}()
	return fn()
}

// Install validates the host, installs the binary, writes the descriptor
// and starts the agent.
func Install(ctx context.Context, deps Deps, cfg config.Config, opts InstallOptions) (InstallReport, error) {
	var report InstallReport
	err := withLock(deps.LockPath, func() error {
		var err error
		report, err = install(ctx, deps, cfg, opts)
		return err
	})
	return report, err
}

func install(ctx context.Context, deps Deps, cfg config.Config, opts InstallOptions) (InstallReport, error) {
	log := logger.WithComponent("lifecycle")
	out := deps.out()
	var report InstallReport

	if err := cfg.Validate(); err != nil {
		return report, err
	}

	info, err := deps.Validator.Validate(ctx)
	if err != nil {
		return report, err
	}
	report.Platform = info
	log.Info().Str("os", info.OS).Str("arch", info.Arch).Str("toolchain", info.Toolchain).Msg("Platform validated")

	found, err := deps.Locator.Locate(cfg.BinaryPath)
	if err != nil {
		return report, err
	}
	report.Binary = found
	log.Info().Str("path", found.Path).Stringer("source", found.Source).Msg("Using binary")

	if err := installer.Install(found.Path, deps.Target); err != nil {
		return report, err
	}
	report.OnPath = installer.CheckPath(deps.Target.InstallDir, deps.SearchPath)

	report.Descriptor = descriptor.Generate(cfg, deps.Target)

	ctrl := service.NewController(deps.Supervisor, deps.Processes, deps.Clock, deps.Timing)
	if opts.HealthCheck {
		ctrl.WithHealthProbe(service.NewHealthProbe(cfg.Port, cfg.APIKey, deps.Clock, deps.Timing.HealthAttempts, deps.Timing.HealthInterval))
	}
	if err := ctrl.Start(ctx, deps.Target, report.Descriptor); err != nil {
		return report, err
	}

	fmt.Fprintf(out, "%s is running\n", config.ServiceName)
	fmt.Fprintf(out, "  binary:     %s\n", deps.Target.BinaryPath)
	fmt.Fprintf(out, "  descriptor: %s\n", deps.Target.DescriptorPath)
	fmt.Fprintf(out, "  port:       %d\n", cfg.Port)
	if cfg.AuthEnabled() {
		fmt.Fprintln(out, "  auth:       API key required")
	} else {
		fmt.Fprintln(out, "  auth:       disabled")
	}
	fmt.Fprintf(out, "  logs:       %s\n", deps.Target.LogDir)
	if !report.OnPath {
		fmt.Fprintf(out, "\n%s is not on your PATH. Add it with:\n  %s\n", deps.Target.InstallDir, installer.RemediationCommand(deps.Target.InstallDir))
	}
	return report, nil
}

// Uninstall stops the agent, removes its files and handles the logs
// according to mode. Only a failed file removal is an error.
func Uninstall(ctx context.Context, deps Deps, mode service.PurgeMode) (UninstallReport, error) {
	var report UninstallReport
	err := withLock(deps.LockPath, func() error {
		var err error
		report, err = uninstall(ctx, deps, mode)
		return err
	})
	return report, err
}

func uninstall(ctx context.Context, deps Deps, mode service.PurgeMode) (UninstallReport, error) {
	out := deps.out()
	u := service.NewUninstaller(deps.Supervisor, deps.Processes, deps.Clock, deps.Timing)
	var report UninstallReport

	report.Stop = u.Stop(ctx, deps.Target)
	switch report.Stop {
	case service.AlreadyAbsent:
		fmt.Fprintln(out, "service: not installed, nothing to stop")
	case service.Stopped:
		fmt.Fprintln(out, "service: stopped")
	case service.ForceKilled:
		fmt.Fprintln(out, "service: did not stop in time, terminated")
	case service.StillRunning:
		fmt.Fprintln(out, "service: still running after forced termination")
	}

	report.Files = u.RemoveFiles(deps.Target)
	printRemoval(out, "binary", report.Files.Binary)
	printRemoval(out, "descriptor", report.Files.Descriptor)

	purged, purgeErr := u.PurgeLogs(deps.Target, mode, deps.Prompter)
	report.PurgedLogs = purged
	for _, p := range purged {
		fmt.Fprintf(out, "log: removed %s\n", p)
	}

	return report, errors.Join(report.Files.Err(), purgeErr)
}

func printRemoval(out io.Writer, what string, r service.Removal) {
	switch r.Status {
	case service.Removed:
		fmt.Fprintf(out, "%s: removed %s\n", what, r.Path)
	case service.Absent:
		fmt.Fprintf(out, "%s: nothing to remove (%s)\n", what, r.Path)
	case service.RemoveFailed:
		fmt.Fprintf(out, "%s: %v\n", what, r.Err)
	}
}
