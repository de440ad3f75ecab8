// Package service registers, starts, stops and removes the xcbridge
// launchd agent.
package service

import "context"

// Outcome is the result of a best-effort supervisor command. Only Failed
// is an error; NotApplicable means there was nothing to act on.
type Outcome int

const (
	Succeeded Outcome = iota
	NotApplicable
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case NotApplicable:
		return "not-applicable"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Supervisor is the host service manager.
type Supervisor interface {
	// Unregister unloads the agent with the given label. An agent that
	// is not loaded yields NotApplicable.
	Unregister(ctx context.Context, label string) (Outcome, error)

	// Register loads and starts the agent described by descriptorPath.
	Register(ctx context.Context, descriptorPath string) (Outcome, error)
}

// ProcessTable finds and terminates processes by identity.
type ProcessTable interface {
	// Find returns the PIDs of live processes matching identity.
	Find(ctx context.Context, identity string) ([]int32, error)

	// Kill forcibly terminates every process matching identity and
	// returns how many were signalled.
	Kill(ctx context.Context, identity string) (int, error)
}
