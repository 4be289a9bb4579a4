package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"followers-monitor/internal/api"
	"followers-monitor/internal/config"
	"followers-monitor/internal/database"
	"followers-monitor/internal/monitoring"
	"followers-monitor/internal/storage"
	"followers-monitor/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path (optional)")
		port       = flag.String("port", "", "API server port (overrides config)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	logger := utils.SetupLogger(*debug)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.API.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to open snapshot storage: %v", err)
	}

	opts := api.Options{
		Account:    cfg.Account.Username,
		Port:       cfg.API.Port,
		StaleAfter: config.Duration(cfg.Monitoring.StaleAfter),
		Monitor:    monitoring.NewMonitor(logger, cfg.Monitoring.MetricsFile),
	}

	if cfg.Database.Enabled {
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		opts.Archive = db
	}

	server := api.NewServer(store, opts, logger)

	logger.Infof("Starting Followers Monitor API server on port %s", cfg.API.Port)
	logger.Info("Available endpoints:")
	logger.Info("  GET  /api/health - Health check")
	logger.Info("  GET  /api/snapshots - List stored snapshots")
	logger.Info("  GET  /api/snapshots/latest - Latest snapshot")
	logger.Info("  GET  /api/diff - Changes between the last two snapshots")
	logger.Info("  GET  /api/followers - Current followers (?q= to search)")
	logger.Info("  GET  /api/followers/export/csv - Export followers to CSV")
	logger.Info("  GET  /api/stats, /api/events - Archive statistics and follow events")
	logger.Info("  GET  /api/archive/snapshots - Archived snapshot runs")
	logger.Info("  GET  /dashboard - Web dashboard")

	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
