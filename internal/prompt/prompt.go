// Package prompt asks the operator yes/no questions on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal reads answers from in and writes questions to out. Without an
// interactive input every question is answered no.
type Terminal struct {
	in          io.Reader
	out         io.Writer
	interactive bool
}

// NewTerminal returns a prompter on stdin and stderr.
func NewTerminal() *Terminal {
	return &Terminal{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// New returns a prompter on the given streams, treated as interactive.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, interactive: true}
}

// Interactive reports whether questions can be answered.
func (t *Terminal) Interactive() bool {
	return t.interactive
}

// Confirm prints question and returns true for "y" or "yes".
func (t *Terminal) Confirm(question string) bool {
	if !t.interactive {
		fmt.Fprintf(t.out, "%s [y/N] no (not a terminal)\n", question)
		return false
	}

	fmt.Fprintf(t.out, "%s [y/N] ", question)
	line, err := bufio.NewReader(t.in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(t.out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
