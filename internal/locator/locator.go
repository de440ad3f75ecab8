// Package locator resolves which service executable to install.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/logger"
)

// ErrBinaryNotFound is returned when no candidate exists.
var ErrBinaryNotFound = errors.New("binary not found")

// Source identifies which precedence rule matched.
type Source int

const (
	SourceExplicit Source = iota + 1
	SourceWorkingDir
	SourceReleaseBuild
	SourceDebugBuild
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceWorkingDir:
		return "working-dir"
	case SourceReleaseBuild:
		return "release-build"
	case SourceDebugBuild:
		return "debug-build"
	default:
		return "unknown"
	}
}

// Result is a resolved binary.
type Result struct {
	Path   string
	Source Source
}

// Locator searches for the binary relative to a working directory.
type Locator struct {
	workDir string
	name    string
}

// New returns a Locator rooted at workDir looking for the service binary.
func New(workDir string) *Locator {
	return &Locator{workDir: workDir, name: config.ServiceName}
}

type candidate struct {
	path   string
	source Source
}

func (l *Locator) candidates(explicit string) []candidate {
	var cs []candidate
	if explicit != "" {
		if !filepath.IsAbs(explicit) {
			explicit = filepath.Join(l.workDir, explicit)
		}
		cs = append(cs, candidate{explicit, SourceExplicit})
	}
	return append(cs,
		candidate{filepath.Join(l.workDir, l.name), SourceWorkingDir},
		candidate{filepath.Join(l.workDir, "target", "release", l.name), SourceReleaseBuild},
		candidate{filepath.Join(l.workDir, "target", "debug", l.name), SourceDebugBuild},
	)
}

// Locate returns the first existing regular file in precedence order:
// explicit path, ./xcbridge, ./target/release/xcbridge, ./target/debug/xcbridge.
func (l *Locator) Locate(explicit string) (Result, error) {
	log := logger.WithComponent("locator")

	for _, c := range l.candidates(explicit) {
		fi, err := os.Stat(c.path)
		if err != nil || !fi.Mode().IsRegular() {
			if c.source == SourceExplicit {
				log.Warn().Str("path", c.path).Msg("Explicit binary path does not exist, searching defaults")
			}
			continue
		}

		if c.source == SourceDebugBuild {
			log.Warn().
				Str("warning", "DebugBuildUsed").
				Str("path", c.path).
				Msg("Using a debug build; run 'cargo build --release' for a faster, smaller binary")
		}
		log.Debug().Str("path", c.path).Stringer("source", c.source).Msg("Binary located")
		return Result{Path: c.path, Source: c.source}, nil
	}

	return Result{}, fmt.Errorf("%w: no %s binary in %s; build it first with 'cargo build --release' or pass its path as an argument",
		ErrBinaryNotFound, l.name, l.workDir)
}
