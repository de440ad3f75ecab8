package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/descriptor"
	"xcbridgectl/internal/logs"
)

// ErrNoLogs is returned when following logs that have never been created.
var ErrNoLogs = errors.New("no service logs yet")

// StatusReport is a read-only snapshot of the installation.
type StatusReport struct {
	BinaryInstalled bool
	Descriptor      *descriptor.Descriptor
	PIDs            []int32
}

// Running reports whether a process with the service identity exists.
func (s StatusReport) Running() bool {
	return len(s.PIDs) > 0
}

// Status inspects the installed files and the process table. It never
// modifies anything.
func Status(ctx context.Context, deps Deps) (StatusReport, error) {
	out := deps.out()
	target := deps.Target
	var report StatusReport

	if fi, err := os.Stat(target.BinaryPath); err == nil && fi.Mode().IsRegular() {
		report.BinaryInstalled = true
	}

	d, err := descriptor.Read(target.DescriptorPath)
	switch {
	case err == nil:
		report.Descriptor = &d
	case !errors.Is(err, os.ErrNotExist):
		return report, err
	}

	pids, err := deps.Processes.Find(ctx, target.Identity)
	if err != nil {
		return report, err
	}
	report.PIDs = pids

	fmt.Fprintf(out, "binary:     %s (%s)\n", target.BinaryPath, presence(report.BinaryInstalled))
	fmt.Fprintf(out, "descriptor: %s (%s)\n", target.DescriptorPath, presence(report.Descriptor != nil))
	if report.Descriptor != nil {
		fmt.Fprintf(out, "arguments:  %s\n", redactArgs(report.Descriptor.Args))
	}
	if report.Running() {
		fmt.Fprintf(out, "process:    running (pid %s)\n", joinPIDs(pids))
	} else {
		fmt.Fprintln(out, "process:    not running")
	}
	return report, nil
}

func presence(ok bool) string {
	if ok {
		return "installed"
	}
	return "absent"
}

// redactArgs hides the value following --api-key.
func redactArgs(args []string) string {
	shown := make([]string, len(args))
	copy(shown, args)
	for i := 0; i+1 < len(shown); i++ {
		if shown[i] == "--api-key" {
			shown[i+1] = "********"
		}
	}
	return strings.Join(shown, " ")
}

func joinPIDs(pids []int32) string {
	s := make([]string, len(pids))
	for i, p := range pids {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ", ")
}

// ShowLogs prints the last lines of both service logs and, with follow,
// streams new output until ctx is cancelled.
func ShowLogs(ctx context.Context, deps Deps, lines int, follow bool) error {
	out := deps.out()
	target := deps.Target

	for _, p := range target.LogFiles() {
		if err := logs.Print(out, p, lines); err != nil {
			return err
		}
	}
	if !follow {
		return nil
	}

	if _, err := os.Stat(target.LogDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s does not exist; install %s first", ErrNoLogs, target.LogDir, config.ServiceName)
	}
	fmt.Fprintln(out, "==> following, press Ctrl-C to stop <==")
	return logs.Follow(ctx, out, target.LogFiles()...)
}
