package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquire_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcbridgectl.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts too
	if _, err := Acquire(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	again, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire after Release failed: %v", err)
	}
	defer again.Release()
}

func TestAcquire_WritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcbridgectl.lock")
	l, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file content = %q, want pid %d", got, os.Getpid())
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	l, err := Acquire(filepath.Join(t.TempDir(), "xcbridgectl.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release = %v, want nil", err)
	}

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release = %v, want nil", err)
	}
}

func TestAcquire_UnwritableDirectory(t *testing.T) {
	_, err := Acquire(filepath.Join(t.TempDir(), "missing", "xcbridgectl.lock"))
	if err == nil {
		t.Fatal("expected error for a missing directory")
	}
	if errors.Is(err, ErrLocked) {
		t.Error("open failure must not be reported as ErrLocked")
	}
}

type failingPIDFile struct {
	truncateErr error
	writeErr    error
	written     string
}

func (f *failingPIDFile) Truncate(int64) error {
	return f.truncateErr
}

func (f *failingPIDFile) WriteString(s string) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written += s
	return len(s), nil
}

func TestWritePID(t *testing.T) {
	diskFull := errors.New("no space left on device")
	tests := []struct {
		name    string
		file    *failingPIDFile
		wantErr error
		want    string
	}{
		{"ok", &failingPIDFile{}, nil, "4242\n"},
		{"truncate fails", &failingPIDFile{truncateErr: diskFull}, diskFull, ""},
		{"write fails", &failingPIDFile{writeErr: diskFull}, diskFull, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writePID(tt.file, 4242)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("writePID() error = %v, want %v", err, tt.wantErr)
			}
			if tt.file.written != tt.want {
				t.Errorf("written = %q, want %q", tt.file.written, tt.want)
			}
		})
	}
}
