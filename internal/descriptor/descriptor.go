// Package descriptor builds and serializes the launchd agent definition.
//
// Every value reaches disk through a property-list encoder, so ports, API
// keys and paths containing XML-special characters cannot corrupt the file.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"howett.net/plist"

	"xcbridgectl/internal/config"
)

// DefaultSearchPath is the PATH given to the supervised process. launchd
// otherwise starts agents with a minimal search path.
const DefaultSearchPath = "/usr/local/bin:/opt/homebrew/bin:/usr/bin:/bin:/usr/sbin:/sbin"

// RestartPolicy controls relaunch after the process exits.
type RestartPolicy string

// RestartUnlessCleanExit relaunches only after an unsuccessful exit.
const RestartUnlessCleanExit RestartPolicy = "restart-unless-clean-exit"

// Descriptor is the structured service definition.
type Descriptor struct {
	Label       string
	Program     string
	Args        []string
	Restart     RestartPolicy
	StdoutPath  string
	StderrPath  string
	WorkingDir  string
	Environment map[string]string
}

// Generate builds the descriptor for cfg. The program is always the
// managed binary path of target.
func Generate(cfg config.Config, target config.Target) Descriptor {
	return Descriptor{
		Label:      target.Label,
		Program:    target.BinaryPath,
		Args:       Arguments(cfg),
		Restart:    RestartUnlessCleanExit,
		StdoutPath: target.StdoutLog,
		StderrPath: target.StderrLog,
		WorkingDir: target.WorkingDir,
		Environment: map[string]string{
			"PATH": DefaultSearchPath,
		},
	}
}

// Arguments returns "--port <port>" followed by "--api-key <key>" when
// a key is configured.
func Arguments(cfg config.Config) []string {
	args := []string{"--port", strconv.Itoa(cfg.Port)}
	if cfg.APIKey != "" {
		args = append(args, "--api-key", cfg.APIKey)
	}
	return args
}

// keepAlive is the launchd KeepAlive dictionary form.
type keepAlive struct {
	SuccessfulExit bool `plist:"SuccessfulExit"`
}

// launchdPlist mirrors the keys launchd reads from a LaunchAgent file.
type launchdPlist struct {
	Label                string            `plist:"Label"`
	ProgramArguments     []string          `plist:"ProgramArguments"`
	RunAtLoad            bool              `plist:"RunAtLoad"`
	KeepAlive            *keepAlive        `plist:"KeepAlive,omitempty"`
	StandardOutPath      string            `plist:"StandardOutPath,omitempty"`
	StandardErrorPath    string            `plist:"StandardErrorPath,omitempty"`
	WorkingDirectory     string            `plist:"WorkingDirectory,omitempty"`
	EnvironmentVariables map[string]string `plist:"EnvironmentVariables,omitempty"`
}

func toPlist(d Descriptor) launchdPlist {
	p := launchdPlist{
		Label:                d.Label,
		ProgramArguments:     append([]string{d.Program}, d.Args...),
		RunAtLoad:            true,
		StandardOutPath:      d.StdoutPath,
		StandardErrorPath:    d.StderrPath,
		WorkingDirectory:     d.WorkingDir,
		EnvironmentVariables: d.Environment,
	}
	if d.Restart == RestartUnlessCleanExit {
		p.KeepAlive = &keepAlive{SuccessfulExit: false}
	}
	return p
}

// Encode serializes d as an XML property list.
func Encode(d Descriptor) ([]byte, error) {
	if d.Label == "" || d.Program == "" {
		return nil, fmt.Errorf("descriptor requires a label and a program")
	}
	data, err := plist.MarshalIndent(toPlist(d), plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return data, nil
}

// Decode parses a property list written by Encode.
func Decode(data []byte) (Descriptor, error) {
	var p launchdPlist
	if _, err := plist.Unmarshal(data, &p); err != nil {
		return Descriptor{}, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	if len(p.ProgramArguments) == 0 {
		return Descriptor{}, fmt.Errorf("descriptor has no ProgramArguments")
	}

	d := Descriptor{
		Label:       p.Label,
		Program:     p.ProgramArguments[0],
		Args:        p.ProgramArguments[1:],
		StdoutPath:  p.StandardOutPath,
		StderrPath:  p.StandardErrorPath,
		WorkingDir:  p.WorkingDirectory,
		Environment: p.EnvironmentVariables,
	}
	if p.KeepAlive != nil && !p.KeepAlive.SuccessfulExit {
		d.Restart = RestartUnlessCleanExit
	}
	return d, nil
}

// Write encodes d and replaces path with it. The file is written next to
// path and renamed into place so readers never see a partial descriptor.
func Write(path string, d Descriptor) error {
	data, err := Encode(d)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create descriptor directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp descriptor: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set descriptor mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install descriptor at %s: %w", path, err)
	}
	return nil
}

// Read loads the descriptor at path.
func Read(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}
	return Decode(data)
}
