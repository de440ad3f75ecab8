package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// nameMatcher compares process names the way the host does: Windows is
// case-insensitive, everything else is exact.
type nameMatcher struct {
	caseInsensitive bool
}

func newNameMatcher() nameMatcher {
	return nameMatcher{caseInsensitive: runtime.GOOS == "windows"}
}

func (m nameMatcher) matches(identity, name string) bool {
	if identity == "" || name == "" {
		return false
	}
	if m.caseInsensitive {
		return strings.EqualFold(identity, name)
	}
	return identity == name
}

// HostProcesses is the ProcessTable backed by the OS process list.
type HostProcesses struct {
	matcher nameMatcher
	self    int32
}

// NewHostProcesses returns a ProcessTable over the live process list.
func NewHostProcesses() *HostProcesses {
	return &HostProcesses{
		matcher: newNameMatcher(),
		self:    int32(os.Getpid()),
	}
}

func (h *HostProcesses) matching(ctx context.Context, identity string) ([]*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var matched []*process.Process
	for _, p := range procs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if p.Pid == h.self {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if h.matcher.matches(identity, name) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Find returns the PIDs of processes named identity.
func (h *HostProcesses) Find(ctx context.Context, identity string) ([]int32, error) {
	procs, err := h.matching(ctx, identity)
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(procs))
	for _, p := range procs {
		pids = append(pids, p.Pid)
	}
	return pids, nil
}

// Kill sends SIGKILL to every process named identity. Processes that
// exit on their own in the meantime are not errors.
func (h *HostProcesses) Kill(ctx context.Context, identity string) (int, error) {
	procs, err := h.matching(ctx, identity)
	if err != nil {
		return 0, err
	}

	var errs []error
	killed := 0
	for _, p := range procs {
		if err := p.KillWithContext(ctx); err != nil {
			if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
				continue
			}
			errs = append(errs, fmt.Errorf("kill pid %d: %w", p.Pid, err))
			continue
		}
		killed++
	}
	return killed, errors.Join(errs...)
}
