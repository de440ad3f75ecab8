package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"xcbridgectl/internal/logger"
)

// bootout exit statuses launchctl uses when nothing is loaded under the label
const (
	exitNoSuchProcess   = 3
	exitServiceNotFound = 113
)

var notLoadedMarkers = []string{
	"No such process",
	"Could not find service",
	"not loaded",
}

// commandFunc runs a command and returns its combined output and exit code.
type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, int, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), err
		}
		return out, -1, err
	}
	return out, 0, nil
}

// Launchctl drives launchd in the per-user GUI domain.
type Launchctl struct {
	domain string
	run    commandFunc
}

// NewLaunchctl returns a Supervisor for the current user's GUI domain.
func NewLaunchctl() *Launchctl {
	return &Launchctl{
		domain: fmt.Sprintf("gui/%d", os.Getuid()),
		run:    runCommand,
	}
}

// Unregister runs "launchctl bootout gui/<uid>/<label>".
func (l *Launchctl) Unregister(ctx context.Context, label string) (Outcome, error) {
	log := logger.WithComponent("launchctl")
	serviceTarget := l.domain + "/" + label

	out, code, err := l.run(ctx, "launchctl", "bootout", serviceTarget)
	if err == nil {
		log.Debug().Str("service", serviceTarget).Msg("Service unloaded")
		return Succeeded, nil
	}
	if isNotLoaded(code, out) {
		log.Debug().Str("service", serviceTarget).Int("exit_code", code).Msg("Service was not loaded")
		return NotApplicable, nil
	}
	return Failed, fmt.Errorf("launchctl bootout %s failed (exit %d): %s", serviceTarget, code, strings.TrimSpace(string(out)))
}

// Register runs "launchctl bootstrap gui/<uid> <descriptorPath>".
func (l *Launchctl) Register(ctx context.Context, descriptorPath string) (Outcome, error) {
	out, code, err := l.run(ctx, "launchctl", "bootstrap", l.domain, descriptorPath)
	if err != nil {
		return Failed, fmt.Errorf("launchctl bootstrap %s %s failed (exit %d): %s", l.domain, descriptorPath, code, strings.TrimSpace(string(out)))
	}
	log := logger.WithComponent("launchctl")
	log.Debug().Str("descriptor", descriptorPath).Msg("Service bootstrapped")
	return Succeeded, nil
}

func isNotLoaded(code int, out []byte) bool {
	if code == exitNoSuchProcess || code == exitServiceNotFound {
		return true
	}
	s := string(out)
	for _, m := range notLoadedMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
