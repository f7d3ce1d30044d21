package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskmaster/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "taskctl:", err)
		stop()
		os.Exit(1)
	}
}
