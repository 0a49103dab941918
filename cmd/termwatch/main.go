package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"termwatch/internal/config"
	"termwatch/internal/gateway"
	"termwatch/internal/logging"
	"termwatch/internal/pool"
	"termwatch/internal/registry"
	"termwatch/internal/roster"
	"termwatch/internal/supervisor"
	"termwatch/internal/terminal"
)

const defaultConfigPath = "termwatch.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	settings, credentials, err := loadConfig()
	logger := newLogger(settings.LogLevel)
	if err != nil {
		logger.Error("startup failed", map[string]string{"error": err.Error()})
		return 1
	}

	identities, err := roster.Load(settings.RosterPath)
	if err != nil {
		logger.Error("roster load failed", map[string]string{
			"path":  settings.RosterPath,
			"error": err.Error(),
		})
		return 1
	}
	logger.Info("roster loaded", map[string]string{
		"path":  settings.RosterPath,
		"count": strconv.Itoa(len(identities)),
	})

	connected := registry.New(logger)
	runner := pool.NewGatewayRunner(
		gateway.Endpoint{BaseURL: settings.GatewayURL},
		credentials,
		connected,
		logger,
		supervisor.Options{
			AttemptBackoff:   settings.AttemptBackoff,
			ReconnectBackoff: settings.ReconnectBackoff,
		},
	)
	supervisors := pool.New(runner, connected, logger, pool.Options{
		ReportInterval: settings.ReportInterval,
	})

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignalWatch := watchShutdownSignals(logger, cancelRun, signalCh)
	defer stopSignalWatch()

	coordinator := newShutdownCoordinator(logger)
	if settings.WatchRoster {
		watcher, err := roster.NewWatcher(settings.RosterPath, roster.DefaultDebounce, logger, supervisors.Reconcile)
		if err != nil {
			logger.Warn("roster watching unavailable", map[string]string{
				"error": err.Error(),
			})
		} else {
			coordinator.Add("roster watcher", func(context.Context) error {
				return watcher.Close()
			})
		}
	}

	runErr := supervisors.Run(runCtx, identities)
	shutdownErr := coordinator.Run(context.Background())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("pool stopped with failures", map[string]string{
			"error": runErr.Error(),
		})
		return 1
	}
	if shutdownErr != nil {
		return 1
	}
	logger.Info("shutdown complete", nil)
	return 0
}

func newLogger(level string) *logging.Logger {
	minLevel, ok := logging.ParseLevel(level)
	if !ok {
		minLevel = logging.LevelInfo
	}
	return logging.NewLogger(logging.NewLogBuffer(logging.DefaultBufferSize), minLevel)
}

// loadConfig resolves the settings file, then environment overrides. The
// token comes from the environment only.
func loadConfig() (config.Settings, terminal.Credentials, error) {
	settings := config.Default()

	configPath := os.Getenv("TERMWATCH_CONFIG")
	switch {
	case configPath != "":
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return settings, terminal.Credentials{}, err
		}
		settings = loaded
	default:
		if _, err := os.Stat(defaultConfigPath); err == nil {
			loaded, err := config.LoadFile(defaultConfigPath)
			if err != nil {
				return settings, terminal.Credentials{}, err
			}
			settings = loaded
		}
	}

	if gatewayURL := os.Getenv("TERMWATCH_GATEWAY_URL"); gatewayURL != "" {
		settings.GatewayURL = gatewayURL
	}
	if rosterPath := os.Getenv("TERMWATCH_ROSTER"); rosterPath != "" {
		settings.RosterPath = rosterPath
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		settings.LogLevel = level
	}
	if rawWatch := os.Getenv("TERMWATCH_ROSTER_WATCH"); rawWatch != "" {
		if watch, err := strconv.ParseBool(rawWatch); err == nil {
			settings.WatchRoster = watch
		}
	}

	token := os.Getenv("TOKEN")
	if token == "" {
		return settings, terminal.Credentials{}, errors.New("TOKEN is not set")
	}
	return settings, terminal.Credentials{Token: token}, nil
}
