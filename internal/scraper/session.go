package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
)

// Session is a live, cookie-authenticated browser tab.
type Session interface {
	Page
	// Open injects cookies, navigates to pageURL and waits for the page to
	// settle.
	Open(ctx context.Context, pageURL string, cookies []Cookie) error
	// Content returns the current page HTML.
	Content(ctx context.Context) (string, error)
	Close()
}

// SessionFactory starts a browser session.
type SessionFactory func(ctx context.Context) (Session, error)

// NewSessionFactory picks the browser engine named in the configuration.
func NewSessionFactory(cfg *config.Config, logger *logrus.Logger) SessionFactory {
	sel := SelectorsFromConfig(cfg.Collector.Selectors)
	browserCfg := cfg.Browser

	return func(ctx context.Context) (Session, error) {
		var (
			session Session
			err     error
		)
		switch browserCfg.Engine {
		case "rod":
			logger.Info("Using go-rod for browser automation")
			session, err = NewRodScraper(ctx, browserCfg, sel, logger)
		case "selenium":
			logger.Infof("Using Selenium (%s) for browser automation", browserCfg.SeleniumBrowser)
			session, err = NewSeleniumScraper(browserCfg, sel, logger)
		case "chromedp", "":
			logger.Info("Using chromedp for browser automation")
			session, err = NewBrowserScraper(browserCfg, sel, logger)
		default:
			return nil, fmt.Errorf("unknown browser engine %q", browserCfg.Engine)
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// siteOrigin returns scheme://host of pageURL.
func siteOrigin(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid page URL %q", pageURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func settleDelay(cfg config.BrowserConfig) time.Duration {
	return config.Duration(cfg.SettleDelay)
}
