package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"followers-monitor/internal/config"
	"followers-monitor/internal/database"
	"followers-monitor/internal/monitoring"
	"followers-monitor/internal/utils"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path (optional)")
		metricsFile = flag.String("metrics", "", "Metrics file path (overrides config)")
		report      = flag.Bool("report", false, "Generate and display monitoring report")
		alerts      = flag.Bool("alerts", false, "Check and display alerts")
	)
	flag.Parse()

	logger := utils.SetupLogger(false)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *metricsFile != "" {
		cfg.Monitoring.MetricsFile = *metricsFile
	}

	monitor := monitoring.NewMonitor(logger, cfg.Monitoring.MetricsFile)

	if *report {
		fmt.Println(monitor.GenerateReport())

		if cfg.Database.Enabled && cfg.Account.Username != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			db, err := database.NewConnection(ctx, cfg.Database, logger)
			if err != nil {
				logger.Errorf("Failed to connect to database: %v", err)
				return
			}
			defer db.Close()

			stats, err := db.GetStats(ctx, cfg.Account.Username)
			if err != nil {
				logger.Errorf("Failed to get database stats: %v", err)
				return
			}
			fmt.Println("\nDatabase Statistics:")
			fmt.Printf("- Snapshots: %v\n", stats["snapshots"])
			fmt.Printf("- Follows: %v\n", stats["follows"])
			fmt.Printf("- Unfollows: %v\n", stats["unfollows"])
			fmt.Printf("- Unfollows (7 days): %v\n", stats["unfollows_last_7_days"])
			if last, ok := stats["last_snapshot"]; ok {
				fmt.Printf("- Last Snapshot: %v\n", last)
			}
		}
		return
	}

	if *alerts {
		alertManager := monitoring.NewAlertManager(monitor, cfg.Monitoring, logger)
		active := alertManager.CheckAlerts()

		if len(active) == 0 {
			fmt.Println("✅ No alerts - system is healthy")
		} else {
			fmt.Println("⚠️  Active Alerts:")
			for _, alert := range active {
				fmt.Printf("  - %s\n", alert)
			}
			alertManager.SendAlerts(active)
		}
		return
	}

	health := monitor.GetHealthStatus(config.Duration(cfg.Monitoring.StaleAfter))
	fmt.Println("Followers Monitor Status:")
	fmt.Printf("- Status: %s\n", health["status"])
	fmt.Printf("- Last Run: %s\n", health["last_run"])
	fmt.Printf("- Total Runs: %v\n", health["total_runs"])
	fmt.Printf("- Error Rate: %s\n", health["error_rate"])
	fmt.Printf("- Average Runtime: %s\n", health["average_runtime"])

	if warning, exists := health["warning"]; exists {
		fmt.Printf("- Warning: %s\n", warning)
	}
}
