package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/medication-finder/internal/adapters/mcp"
	"github.com/kirillkom/medication-finder/internal/bootstrap"
	"github.com/kirillkom/medication-finder/internal/config"
	"github.com/kirillkom/medication-finder/internal/observability/logging"
)

const serviceName = "mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol stream.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Search, app.Chat, logger)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
