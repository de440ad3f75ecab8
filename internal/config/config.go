// Package config holds the per-invocation install parameters and the
// fixed filesystem locations derived from host conventions.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"
)

const (
	// ServiceName is the executable name and the process identity.
	ServiceName = "xcbridge"
	// Label is the launchd identity of the agent.
	Label = "com.aptove.xcbridge"
	// DefaultPort is the port the service listens on when none is given.
	DefaultPort = 9090
)

var (
	// ErrInvalidPort is returned by Validate for ports outside 1-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidAPIKey is returned by Validate for keys the descriptor
	// cannot carry unchanged.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Config is the operator-supplied install configuration. It is built once
// per invocation and passed by value.
type Config struct {
	Port       int    `env:"XCBRIDGE_PORT" envDefault:"9090"`
	APIKey     string `env:"XCBRIDGE_API_KEY"`
	BinaryPath string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{Port: DefaultPort}
}

// Validate checks the configuration for values the service cannot use.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, c.Port)
	}
	if !utf8.ValidString(c.APIKey) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidAPIKey)
	}
	for i, r := range c.APIKey {
		if !xmlChar(r) {
			return fmt.Errorf("%w: character %U at byte %d cannot be stored in the service descriptor", ErrInvalidAPIKey, r, i)
		}
	}
	return nil
}

// xmlChar reports whether r is allowed in an XML 1.0 document.
func xmlChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// AuthEnabled reports whether the service will require an API key.
func (c Config) AuthEnabled() bool {
	return c.APIKey != ""
}

// Target is the set of managed locations for one user. Every path is
// absolute and derived from the home directory.
type Target struct {
	Label          string
	Identity       string
	InstallDir     string
	BinaryPath     string
	DescriptorPath string
	LogDir         string
	StdoutLog      string
	StderrLog      string
	WorkingDir     string
}

// NewTarget derives the installation target from a home directory.
func NewTarget(home string) Target {
	installDir := filepath.Join(home, ".local", "bin")
	logDir := filepath.Join(home, "Library", "Logs", ServiceName)
	return Target{
		Label:          Label,
		Identity:       ServiceName,
		InstallDir:     installDir,
		BinaryPath:     filepath.Join(installDir, ServiceName),
		DescriptorPath: filepath.Join(home, "Library", "LaunchAgents", Label+".plist"),
		LogDir:         logDir,
		StdoutLog:      filepath.Join(logDir, ServiceName+".log"),
		StderrLog:      filepath.Join(logDir, ServiceName+".error.log"),
		WorkingDir:     home,
	}
}

// LogFiles returns the stdout and stderr log paths in that order.
func (t Target) LogFiles() []string {
	return []string{t.StdoutLog, t.StderrLog}
}

// Timing bounds every wait performed against the supervised process.
type Timing struct {
	// StartGrace is how long to wait after registering before looking
	// for the process.
	StartGrace time.Duration
	// StopInterval is the pause between absence checks while stopping.
	StopInterval time.Duration
	// StopAttempts is the graceful-wait budget in checks.
	StopAttempts int
	// KillSettle is how long to wait after a forced kill before
	// confirming the process is gone.
	KillSettle time.Duration
	// HealthAttempts is the number of /status probes when the health
	// check is enabled.
	HealthAttempts int
	// HealthInterval is the pause between /status probes.
	HealthInterval time.Duration
}

// DefaultTiming returns the waits used by the CLI.
func DefaultTiming() Timing {
	return Timing{
		StartGrace:     3 * time.Second,
		StopInterval:   500 * time.Millisecond,
		StopAttempts:   10,
		KillSettle:     time.Second,
		HealthAttempts: 5,
		HealthInterval: time.Second,
	}
}

// StopBudget is the total graceful wait before escalation.
func (t Timing) StopBudget() time.Duration {
	return time.Duration(t.StopAttempts) * t.StopInterval
}
