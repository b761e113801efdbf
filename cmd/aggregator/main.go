package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"news_aggregator/internal/config"
	"news_aggregator/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = usage
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	name := "run"
	args := flag.Args()
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, logger, name, cmd, args); err != nil {
		logger.Error("command failed", "command", name, "error", err)
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, name string, cmd command, args []string) error {
	if len(args) < cmd.minArgs {
		return fmt.Errorf("usage: aggregator %s %s", name, cmd.args)
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger, cmd.needs)
	if err != nil {
		return err
	}
	defer a.Close()

	err = cmd.run(ctx, a, args)
	if errors.Is(err, context.Canceled) {
		logger.Info("stopped", "command", name)
		return nil
	}
	return err
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
