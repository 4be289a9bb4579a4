package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/internal/database"
	"followers-monitor/internal/monitoring"
	"followers-monitor/internal/notify"
	"followers-monitor/internal/runner"
	"followers-monitor/internal/scraper"
	"followers-monitor/internal/storage"
	"followers-monitor/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path (optional)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		extractCmd = flag.Bool("extract-cookies", false, "Show instructions for extracting cookies")
	)
	flag.Parse()

	if *extractCmd {
		scraper.ExtractCookiesFromBrowser()
		return
	}

	logger := utils.SetupLogger(*debug)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if !*debug && cfg.Logging.Level == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}
	if cfg.Logging.File != "" {
		closer, err := utils.AddLogFile(logger, cfg.Logging.File)
		if err != nil {
			logger.Fatalf("Failed to open log file: %v", err)
		}
		defer closer.Close()
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		os.Exit(1)
	}
}

// run performs one monitoring run and releases its resources before
// returning.
func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage, logger)
	if err != nil {
		logger.Errorf("Failed to prepare snapshot storage: %v", err)
		return err
	}

	monitor := monitoring.NewMonitor(logger, cfg.Monitoring.MetricsFile)

	deps := runner.Deps{
		Sessions: scraper.NewSessionFactory(cfg, logger),
		Store:    store,
		Notifier: notify.NewDiscord(cfg.Notify, logger),
		Recorder: monitor,
	}

	if cfg.Database.Enabled {
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.Errorf("Failed to connect to database, continuing without archive: %v", err)
		} else {
			defer db.Close()
			if err := db.RunMigrations(ctx); err != nil {
				logger.Errorf("Failed to run migrations, continuing without archive: %v", err)
			} else {
				deps.Archive = db
			}
		}
	}

	logger.Infof("Starting follower monitor for @%s", cfg.Account.Username)

	result, err := runner.New(cfg, deps, logger).Run(ctx)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrNoCredentials), errors.Is(err, config.ErrMissingUsername):
			logger.Errorf("Configuration error: %v", err)
			scraper.ExtractCookiesFromBrowser()
		case errors.Is(err, context.Canceled):
			logger.Warn("Run interrupted")
		default:
			logger.Errorf("Run failed: %v", err)
		}
		return err
	}

	logger.WithField("run_id", result.RunID).Infof("Run completed: %d followers saved to %s",
		result.Snapshot.TotalFollowers, result.SavedTo)
	return nil
}
