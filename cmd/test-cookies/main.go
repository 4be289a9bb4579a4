package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/internal/scraper"
	"followers-monitor/internal/utils"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path (optional)")
	flag.Parse()

	logger := utils.SetupLogger(true)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Testing cookie loading...")
	cookies, err := scraper.CookieSource{
		File:          cfg.Auth.CookiesFile,
		EnvVar:        cfg.Auth.CookiesEnv,
		DefaultDomain: cfg.Auth.CookieDomain,
	}.Load(logger)
	if err != nil {
		scraper.ExtractCookiesFromBrowser()
		logger.Fatalf("Failed to load cookies: %v", err)
	}

	now := time.Now()
	for _, c := range cookies {
		if exp := c.ExpiresAt(); !exp.IsZero() && exp.Before(now) {
			fmt.Printf("⚠️  Cookie %s expired at %s\n", c.Name, utils.FormatTimestamp(exp))
		}
	}

	fmt.Println("Testing authentication...")
	cells, err := checkSession(cfg, cookies, logger)
	if err != nil {
		logger.Fatalf("Authentication failed: %v", err)
	}

	fmt.Printf("✅ Cookies are valid and authentication successful! %d follower cells rendered\n", cells)
}

func checkSession(cfg *config.Config, cookies []scraper.Cookie, logger *logrus.Logger) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session, err := scraper.NewSessionFactory(cfg, logger)(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start browser: %w", err)
	}
	defer session.Close()

	if err := session.Open(ctx, cfg.FollowersURL(), cookies); err != nil {
		return 0, fmt.Errorf("failed to open followers page: %w", err)
	}
	html, err := session.Content(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read page: %w", err)
	}
	if err := scraper.CheckAuthenticated(html, cfg.Auth.LoginMarker); err != nil {
		return 0, err
	}

	cells, err := session.CountCells(ctx)
	if err != nil {
		logger.Warnf("Could not count follower cells: %v", err)
	}
	return cells, nil
}
