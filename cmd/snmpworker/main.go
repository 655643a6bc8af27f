// Command snmpworker polls SNMP devices on behalf of a backend: it
// discovers the accounts/entities/sensors it is responsible for, fires
// each device's due sensors on their configured intervals, and posts the
// resulting samples back.
//
// Usage:
//
//	snmpworker [flags]
//
// BACKEND_URL and BOT_TOKEN (or BOT_TOKEN_FROM_FILE) must be set, either
// in the environment or in a .env file in the working directory.
// JOBS_REFRESH_INTERVAL (seconds) and DEBUG=true (text log format) apply
// unless -jobs.refresh.seconds or -log.fmt is given explicitly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gralabs/snmpworker/pkg/snmpworker/app"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpworker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel         string
		logFmt           string
		counterStorePath string
		jobsRefreshSec   int
		reconcileSec     int
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&counterStorePath, "counterstore.path", "", "Sqlite file for counter history (empty = in-memory only)")
	flag.IntVar(&jobsRefreshSec, "jobs.refresh.seconds", 120, "How often to re-fetch the job list from the backend")
	flag.IntVar(&reconcileSec, "reconcile.seconds", 300, "How often to re-sync each device's interface entities")
	flag.Parse()

	_ = godotenv.Load()

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if v := os.Getenv("JOBS_REFRESH_INTERVAL"); v != "" && !explicit["jobs.refresh.seconds"] {
		n, err := strconv.Atoi(v)
		if err != nil {
			return workerr.NewConfigError("JOBS_REFRESH_INTERVAL must be a whole number of seconds", err)
		}
		jobsRefreshSec = n
	}
	if os.Getenv("DEBUG") == "true" && !explicit["log.fmt"] {
		logFmt = "text"
	}

	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		return workerr.NewConfigError("BACKEND_URL is required", nil)
	}
	botToken, err := resolveBotToken()
	if err != nil {
		return err
	}

	cfg := app.Config{
		BackendURL:               backendURL,
		BotToken:                 botToken,
		CounterStorePath:         counterStorePath,
		JobsRefreshInterval:      time.Duration(jobsRefreshSec) * time.Second,
		ReconcileIntervalSeconds: reconcileSec,
	}

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("snmpworker: running — press Ctrl-C to stop")
	<-ctx.Done()
	logger.Info("snmpworker: received shutdown signal")

	application.Stop()
	return nil
}

// resolveBotToken reads BOT_TOKEN directly, or, if BOT_TOKEN_FROM_FILE is
// set instead, reads the token from that file — a convenience for
// container deployments that mount secrets as files rather than env vars.
func resolveBotToken() (string, error) {
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		return token, nil
	}
	if path := os.Getenv("BOT_TOKEN_FROM_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read BOT_TOKEN_FROM_FILE: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", workerr.NewConfigError("BOT_TOKEN or BOT_TOKEN_FROM_FILE is required", nil)
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}
	return slog.New(handler), nil
}
