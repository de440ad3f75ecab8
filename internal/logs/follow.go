package logs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"xcbridgectl/internal/logger"
)

// Follower streams bytes appended to a set of log files. It watches the
// parent directories so files recreated after a purge are picked up. The
// directories must already exist.
type Follower struct {
	out     io.Writer
	offsets map[string]int64
	watcher *fsnotify.Watcher
}

// NewFollower prepares to follow paths, starting at their current end.
func NewFollower(out io.Writer, paths ...string) (*Follower, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	f := &Follower{
		out:     out,
		offsets: make(map[string]int64, len(paths)),
		watcher: w,
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		f.offsets[p] = sizeOf(p)
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return f, nil
}

// Run copies new content to the output until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	log := logger.WithComponent("logs")
	defer f.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if _, tracked := f.offsets[event.Name]; !tracked {
				continue
			}

			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				f.offsets[event.Name] = 0
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if err := f.copyNew(event.Name); err != nil {
					log.Warn().Err(err).Str("path", event.Name).Msg("Failed to read log update")
				}
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Log watcher error")
		}
	}
}

// copyNew writes everything past the recorded offset. A file that shrank
// was truncated and is read from the start.
func (f *Follower) copyNew(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return err
	}
	offset := f.offsets[path]
	if fi.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(f.out, file)
	f.offsets[path] = offset + n
	return err
}

func sizeOf(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// Follow is NewFollower followed by Run.
func Follow(ctx context.Context, out io.Writer, paths ...string) error {
	f, err := NewFollower(out, paths...)
	if err != nil {
		return err
	}
	return f.Run(ctx)
}
