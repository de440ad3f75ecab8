// Package main is the entry point for xcbridgectl, which installs and
// removes the xcbridge launchd agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/lifecycle"
	"xcbridgectl/internal/locator"
	"xcbridgectl/internal/lock"
	"xcbridgectl/internal/logger"
	"xcbridgectl/internal/platform"
	"xcbridgectl/internal/prompt"
	"xcbridgectl/internal/service"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// errUsage marks command line mistakes; the message has already been
// printed with the usage text.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "install":
		err = runInstall(rest, stdout, stderr)
	case "uninstall":
		err = runUninstall(rest, stdout, stderr)
	case "status":
		err = runStatus(rest, stdout, stderr)
	case "logs":
		err = runLogs(rest, stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "xcbridgectl %s (built %s)\n", version, buildTime)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		printUsage(stderr)
		return 1
	}

	defer logger.Close()
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 1
	default:
		log := logger.WithComponent("main")
		log.Error().Err(err).Msg("Command failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: xcbridgectl <command> [flags]

Commands:
  install [binary]   install xcbridge and start it as a launchd agent
  uninstall          stop xcbridge and remove its files
  status             show what is installed and whether it runs
  logs               print the service logs
  version            print the version

Run 'xcbridgectl <command> --help' for command flags.
`)
}

// logFlags are accepted by every command.
type logFlags struct {
	level string
	file  string
}

func (l *logFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&l.level, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&l.file, "log-file", "", "also write logs to this file")
}

func (l *logFlags) init() error {
	lc, err := config.LoadLogging()
	if err != nil {
		return err
	}
	if l.level != "" {
		lc.Level = l.level
	}
	if l.file != "" {
		lc.FilePath = l.file
	}
	if err := logger.Init(lc); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func newFlagSet(name, usage string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: xcbridgectl %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *pflag.FlagSet, args []string, stderr io.Writer) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return errUsage
	}
	return nil
}

func newDeps(stdout io.Writer) (lifecycle.Deps, error) {
	target, err := config.LoadTarget()
	if err != nil {
		return lifecycle.Deps{}, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return lifecycle.Deps{}, fmt.Errorf("failed to get working directory: %w", err)
	}
	return lifecycle.Deps{
		Validator:  platform.NewValidator(),
		Locator:    locator.New(wd),
		Supervisor: service.NewLaunchctl(),
		Processes:  service.NewHostProcesses(),
		Prompter:   prompt.NewTerminal(),
		Timing:     config.DefaultTiming(),
		Target:     target,
		SearchPath: os.Getenv("PATH"),
		LockPath:   lock.DefaultPath(),
		Out:        stdout,
	}, nil
}

func runInstall(args []string, stdout, stderr io.Writer) error {
	var (
		lf          logFlags
		port        int
		apiKey      string
		healthCheck bool
	)
	fs := newFlagSet("install", "install [flags] [binary]", stderr)
	fs.IntVar(&port, "port", config.DefaultPort, "port the service listens on")
	fs.StringVar(&apiKey, "api-key", "", "API key clients must send (empty disables auth)")
	fs.BoolVar(&healthCheck, "health-check", false, "also require a healthy /status response after start")
	lf.register(fs)
	if err := parse(fs, args, stderr); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "install takes at most one binary path, got %d arguments\n", fs.NArg())
		fs.Usage()
		return errUsage
	}
	if err := lf.init(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if fs.Changed("port") {
		cfg.Port = port
	}
	if fs.Changed("api-key") {
		cfg.APIKey = apiKey
	}
	cfg.BinaryPath = fs.Arg(0)

	deps, err := newDeps(stdout)
	if err != nil {
		return err
	}

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Int("port", cfg.Port).
		Bool("auth", cfg.AuthEnabled()).
		Msg("Installing xcbridge")

	_, err = lifecycle.Install(context.Background(), deps, cfg, lifecycle.InstallOptions{HealthCheck: healthCheck})
	return err
}

func runUninstall(args []string, stdout, stderr io.Writer) error {
	var (
		lf       logFlags
		force    bool
		keepLogs bool
	)
	fs := newFlagSet("uninstall", "uninstall [flags]", stderr)
	fs.BoolVar(&force, "force", false, "delete the service logs without asking")
	fs.BoolVar(&keepLogs, "keep-logs", false, "keep the service logs without asking")
	lf.register(fs)
	if err := parse(fs, args, stderr); err != nil {
		return err
	}
	if force && keepLogs {
		fmt.Fprintln(stderr, "--force and --keep-logs cannot be used together")
		fs.Usage()
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "uninstall takes no arguments, got %q\n", fs.Args())
		return errUsage
	}
	if err := lf.init(); err != nil {
		return err
	}

	mode := service.PurgePrompt
	switch {
	case force:
		mode = service.PurgeForce
	case keepLogs:
		mode = service.PurgeKeep
	}

	deps, err := newDeps(stdout)
	if err != nil {
		return err
	}
	_, err = lifecycle.Uninstall(context.Background(), deps, mode)
	return err
}

func runStatus(args []string, stdout, stderr io.Writer) error {
	var lf logFlags
	fs := newFlagSet("status", "status [flags]", stderr)
	lf.register(fs)
	if err := parse(fs, args, stderr); err != nil {
		return err
	}
	if err := lf.init(); err != nil {
		return err
	}

	deps, err := newDeps(stdout)
	if err != nil {
		return err
	}
	_, err = lifecycle.Status(context.Background(), deps)
	return err
}

func runLogs(args []string, stdout, stderr io.Writer) error {
	var (
		lf     logFlags
		lines  int
		follow bool
	)
	fs := newFlagSet("logs", "logs [flags]", stderr)
	fs.IntVarP(&lines, "lines", "n", 50, "number of lines to print from each log")
	fs.BoolVarP(&follow, "follow", "f", false, "keep printing new log output")
	lf.register(fs)
	if err := parse(fs, args, stderr); err != nil {
		return err
	}
	if err := lf.init(); err != nil {
		return err
	}

	deps, err := newDeps(stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return lifecycle.ShowLogs(ctx, deps, lines, follow)
}
