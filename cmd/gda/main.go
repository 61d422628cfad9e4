package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/danieljhkim/gda/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}
