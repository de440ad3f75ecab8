// Package logs reads the supervised service's stdout and stderr logs.
package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Tail returns up to the last n lines of path. A missing file yields no
// lines and no error.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return ring, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ring, nil
}

// Print writes the last n lines of path to w under a header line.
func Print(w io.Writer, path string, n int) error {
	lines, err := Tail(path, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "==> %s <==\n", path)
	if len(lines) == 0 {
		fmt.Fprintln(w, "(empty)")
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
