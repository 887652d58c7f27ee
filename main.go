package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/tphakala/audiopulse/cmd"
	"github.com/tphakala/audiopulse/internal/conf"
	"github.com/tphakala/audiopulse/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// stdout belongs to the meter, logs go to stderr
	logging.SetOutput(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
