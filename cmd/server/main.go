package main

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/exchangechat/internal/audit"
	"github.com/Tyrowin/exchangechat/internal/exchange"
	"github.com/Tyrowin/exchangechat/internal/logger"
	"github.com/Tyrowin/exchangechat/internal/metrics"
	"github.com/Tyrowin/exchangechat/internal/server"
)

const configPathEnv = "EXCHANGECHAT_CONFIG_PATH"

func main() {
	if err := loadDotEnv(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}

	configPath, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.LoggerConfig())
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// loadDotEnv populates the environment from .env. A missing file is fine.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// parseFlags returns the config file path. The -config default comes from
// the environment, so .env must be loaded first.
func parseFlags(args []string) (string, error) {
	flags := flag.NewFlagSet("exchangechat", flag.ContinueOnError)
	configPath := flags.String("config", os.Getenv(configPathEnv), "path to a YAML config file")
	if err := flags.Parse(args); err != nil {
		return "", err
	}
	return *configPath, nil
}

func run(cfg *server.Config, log *slog.Logger) error {
	m := metrics.New()

	auditLog, err := audit.Open(cfg.AuditSinkConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			log.Warn("Failed to close audit log", "error", err)
		}
	}()

	fetcher := exchange.NewPrivatBank(cfg.ProviderConfig(), log, exchange.WithObserver(m))

	srv, err := server.New(*cfg, server.Deps{
		Fetcher: fetcher,
		Audit:   auditLog,
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("Received signal, shutting down", "signal", sig.String())
	}

	return srv.Shutdown(cfg.ShutdownTimeout)
}
