package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/marine-acoustics/hydroscope/cmd/hydroscope/app"
	"github.com/marine-acoustics/hydroscope/internal/logging"
)

func main() {
	config, err := app.NewConfigFromCLI()
	if err != nil {
		// No logger yet; the flag package has already printed usage.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, closeLogger := logging.New(config.Engine.Logging)
	defer closeLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
