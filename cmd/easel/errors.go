package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexcabrera/easel/internal/flows"
)

// errReported marks errors a command has already printed.
var errReported = errors.New("error already reported")

// Exit codes for flow commands.
const (
	exitFailure      = 1
	exitInvalidInput = 2
	exitFlowFailed   = 3
	exitTimeout      = 124
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return exitTimeout
	case errors.Is(err, flows.ErrInvalidInput), errors.Is(err, flows.ErrUnknownFlow):
		return exitInvalidInput
	case flows.KindOf(err) != "":
		return exitFlowFailed
	default:
		return exitFailure
	}
}

// printFlowError renders a flow failure with its kind and field errors.
// Other errors are returned unchanged for fang to print.
func printFlowError(w io.Writer, err error) error {
	var fe *flows.Error
	if !errors.As(err, &fe) {
		return err
	}

	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#fbbf24")).Bold(true)
	pathStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#67e8f9"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))

	title := string(fe.Kind)
	if fe.Flow != "" {
		title = fe.Flow + ": " + title
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, errorStyle.Render("  x "+title))

	if fe.Detail != "" {
		fmt.Fprintln(w, "    "+fe.Detail)
	}
	if fe.Err != nil {
		fmt.Fprintln(w, "    "+muted.Render(fe.Err.Error()))
	}

	if len(fe.Fields) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  "+headerStyle.Render("Fields:"))
		for _, f := range fe.Fields {
			path := f.Path
			if path == "" {
				path = "(input)"
			}
			fmt.Fprintf(w, "    %s %s\n", pathStyle.Render(path), f.Reason)
		}
	}

	if fe.Kind.Retryable() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  "+muted.Render("This request can be retried."))
	}
	fmt.Fprintln(w)

	return fmt.Errorf("%w: %w", errReported, err)
}
