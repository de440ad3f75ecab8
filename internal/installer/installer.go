// Package installer places the service binary into the managed location.
package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"xcbridgectl/internal/config"
	"xcbridgectl/internal/logger"
)

// ErrNotExecutable is returned when the installed file cannot be executed.
var ErrNotExecutable = errors.New("installed binary is not executable")

// Install copies binary to target.BinaryPath. The copy is made under a
// temporary name, synced, marked executable and only then renamed over
// the destination, so a partial copy is never executable at the final path.
func Install(binary string, target config.Target) error {
	log := logger.WithComponent("installer")

	src, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", binary, err)
	}
	dst := target.BinaryPath
	if same, _ := sameFile(src, dst); same {
		log.Info().Str("path", dst).Msg("Binary already in place")
		return ensureExecutable(dst)
	}

	if err := os.MkdirAll(target.InstallDir, 0755); err != nil {
		return fmt.Errorf("failed to create install directory %s: %w", target.InstallDir, err)
	}

	if err := copyExecutable(src, dst); err != nil {
		return err
	}
	if err := VerifyExecutable(dst); err != nil {
		return err
	}

	log.Info().Str("from", src).Str("path", dst).Msg("Binary installed")
	return nil
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	// Mark executable only after the whole file is on disk
	if err := os.Chmod(tmpName, 0755); err != nil {
		return fmt.Errorf("failed to set executable bit: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to move binary into %s: %w", dst, err)
	}
	committed = true
	return nil
}

func ensureExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("failed to set executable bit: %w", err)
	}
	return VerifyExecutable(path)
}

// VerifyExecutable checks that the current user may execute path.
func VerifyExecutable(path string) error {
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotExecutable, path, err)
	}
	return nil
}

func sameFile(a, b string) (bool, error) {
	fa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(fa, fb), nil
}

// OnSearchPath reports whether dir is one of the entries of searchPath.
func OnSearchPath(dir, searchPath string) bool {
	clean := filepath.Clean(dir)
	for _, entry := range filepath.SplitList(searchPath) {
		if entry == "" {
			continue
		}
		if filepath.Clean(entry) == clean {
			return true
		}
	}
	return false
}

// CheckPath logs a PathNotConfigured warning when dir is not on
// searchPath. It never fails.
func CheckPath(dir, searchPath string) bool {
	if OnSearchPath(dir, searchPath) {
		return true
	}
	log := logger.WithComponent("installer")
	log.Warn().
		Str("warning", "PathNotConfigured").
		Str("dir", dir).
		Str("fix", RemediationCommand(dir)).
		Msg("Install directory is not on PATH; add it to your shell profile")
	return false
}

// RemediationCommand is the shell line that puts dir on PATH.
func RemediationCommand(dir string) string {
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(dir, home+string(filepath.Separator)) {
		dir = "$HOME" + strings.TrimPrefix(dir, home)
	}
	return fmt.Sprintf(`export PATH="%s:$PATH"`, dir)
}
