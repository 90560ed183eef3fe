// Command borsactl administers a borsapulse database from the shell: it
// registers instruments, ingests price files, recomputes analysis and
// exports the results without going through the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	code := 1
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	stop()
	os.Exit(code)
}
