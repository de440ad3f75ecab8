package locator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"xcbridgectl/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLocate_Precedence(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom", "xcbridge-custom")
	cwd := filepath.Join(dir, "xcbridge")
	release := filepath.Join(dir, "target", "release", "xcbridge")
	debug := filepath.Join(dir, "target", "debug", "xcbridge")

	tests := []struct {
		name     string
		present  []string
		explicit string
		want     string
		source   Source
	}{
		{"all present, explicit wins", []string{explicit, cwd, release, debug}, explicit, explicit, SourceExplicit},
		{"no explicit, cwd wins", []string{cwd, release, debug}, "", cwd, SourceWorkingDir},
		{"release over debug", []string{release, debug}, "", release, SourceReleaseBuild},
		{"debug last", []string{debug}, "", debug, SourceDebugBuild},
		{"missing explicit falls through", []string{release}, filepath.Join(dir, "nope"), release, SourceReleaseBuild},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range []string{explicit, cwd, release, debug} {
				os.Remove(p)
			}
			for _, p := range tt.present {
				touch(t, p)
			}

			// Repeated calls must agree.
			for i := 0; i < 3; i++ {
				got, err := New(dir).Locate(tt.explicit)
				if err != nil {
					t.Fatalf("Locate failed: %v", err)
				}
				if got.Path != tt.want || got.Source != tt.source {
					t.Errorf("Locate() = %+v, want %s (%s)", got, tt.want, tt.source)
				}
			}
		})
	}
}

func TestLocate_RelativeExplicitPath(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "bin", "xcbridge"))

	got, err := New(dir).Locate(filepath.Join("bin", "xcbridge"))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got.Path != filepath.Join(dir, "bin", "xcbridge") {
		t.Errorf("Path = %q", got.Path)
	}
}

func TestLocate_DirectoryIsNotABinary(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "xcbridge"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := New(dir).Locate("")
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestLocate_NotFound(t *testing.T) {
	_, err := New(t.TempDir()).Locate("")
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestSource_String(t *testing.T) {
	if SourceDebugBuild.String() != "debug-build" {
		t.Errorf("got %q", SourceDebugBuild.String())
	}
	if Source(0).String() != "unknown" {
		t.Errorf("got %q", Source(0).String())
	}
}
