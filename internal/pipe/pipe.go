// Package pipe detects whether easel is reading from or writing to a
// pipeline rather than a terminal.
package pipe

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsStdinPiped returns true if stdin is receiving piped input.
func IsStdinPiped() bool {
	return isPiped(os.Stdin)
}

func isPiped(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode()&os.ModeCharDevice) == 0 || stat.Size() > 0
}

// IsStdoutPiped returns true if stdout is not a terminal.
func IsStdoutPiped() bool {
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

// ReadStdin reads all piped stdin. It returns nil when stdin is a terminal.
func ReadStdin() ([]byte, error) {
	return readPiped(os.Stdin)
}

func readPiped(f *os.File) ([]byte, error) {
	if !isPiped(f) {
		return nil, nil
	}
	return io.ReadAll(f)
}

// TerminalWidth returns the width of the terminal on stdout, or fallback
// when stdout is not a terminal.
func TerminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
