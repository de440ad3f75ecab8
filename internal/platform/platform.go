// Package platform checks that the host can run the service at all.
package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// TargetOS is the only operating system the service supports.
const TargetOS = "darwin"

var (
	// ErrUnsupportedPlatform is returned on any host other than TargetOS.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrPrerequisiteMissing is returned when the Xcode toolchain is absent.
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
)

// Info describes a validated host.
type Info struct {
	OS        string
	Arch      string
	Toolchain string
}

// Validator confirms the host OS and toolchain.
type Validator struct {
	goos     string
	goarch   string
	lookPath func(file string) (string, error)
	output   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewValidator returns a validator for the running host.
func NewValidator() *Validator {
	return &Validator{
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		lookPath: exec.LookPath,
		output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Validate returns the toolchain version on success. It has no side effects.
func (v *Validator) Validate(ctx context.Context) (Info, error) {
	if v.goos != TargetOS {
		return Info{}, fmt.Errorf("%w: %s (xcbridge requires macOS)", ErrUnsupportedPlatform, v.goos)
	}

	path, err := v.lookPath("xcodebuild")
	if err != nil {
		return Info{}, fmt.Errorf("%w: xcodebuild not found on PATH; install Xcode from the App Store and run 'xcode-select --install'", ErrPrerequisiteMissing)
	}

	out, err := v.output(ctx, path, "-version")
	if err != nil {
		return Info{}, fmt.Errorf("%w: 'xcodebuild -version' failed (%v); run 'sudo xcode-select -s /Applications/Xcode.app' to select a full Xcode install", ErrPrerequisiteMissing, err)
	}

	return Info{
		OS:        v.goos,
		Arch:      v.goarch,
		Toolchain: firstLine(out),
	}, nil
}

func firstLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return "unknown"
}
