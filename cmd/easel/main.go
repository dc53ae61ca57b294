package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cmd := newRootCmd()

	// Errors already rendered by the command are not printed twice.
	errorHandler := func(w io.Writer, styles fang.Styles, err error) {
		if errors.Is(err, errReported) {
			return
		}
		fang.DefaultErrorHandler(w, styles, err)
	}

	if err := fang.Execute(ctx, cmd,
		fang.WithVersion(version),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}
