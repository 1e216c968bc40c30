package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/healthapp/reviews/services/review/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	root := cli.NewRootCommand(cli.Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		cli.NewUI().Error("%s", cli.ErrorMessage(err))
		cancel()
		os.Exit(1)
	}
}
