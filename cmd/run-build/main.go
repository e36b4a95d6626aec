package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alvesdmateus/codebuild-run-build/internal/cli/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, commands.DefaultDependencies(), os.Args[1:])
	stop()
	os.Exit(code)
}
