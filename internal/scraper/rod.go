package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/pkg/types"
)

// RodScraper drives Chrome through go-rod with the stealth patches applied,
// for sites that block the plain headless fingerprint.
type RodScraper struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	page      *rod.Page
	selectors Selectors
	settle    time.Duration
	logger    *logrus.Logger
}

func NewRodScraper(ctx context.Context, cfg config.BrowserConfig, sel Selectors, logger *logrus.Logger) (*RodScraper, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox")

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	rs := &RodScraper{
		browser:   browser,
		launcher:  l,
		page:      page,
		selectors: sel,
		settle:    settleDelay(cfg),
		logger:    logger,
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
		logger.Warnf("Failed to override user agent: %v", err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.WindowWidth,
		Height:            cfg.WindowHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		logger.Warnf("Failed to set viewport: %v", err)
	}

	return rs, nil
}

func (rs *RodScraper) Open(ctx context.Context, pageURL string, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, cookie := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HttpOnly,
			SameSite: proto.NetworkCookieSameSite(cookie.SameSite),
		}
		if cookie.Expires > 0 {
			param.Expires = proto.TimeSinceEpoch(cookie.Expires)
		}
		params = append(params, param)
	}
	if err := rs.page.SetCookies(params); err != nil {
		return rs.classify(ctx, fmt.Errorf("failed to set cookies: %w", err))
	}

	page := rs.page.Context(ctx)
	if err := page.Navigate(pageURL); err != nil {
		return rs.classify(ctx, fmt.Errorf("failed to open %s: %w", pageURL, err))
	}
	if err := page.WaitLoad(); err != nil {
		rs.logger.Warnf("Page load wait failed: %v", err)
	}

	return RealClock().Sleep(ctx, rs.settle)
}

func (rs *RodScraper) Content(ctx context.Context) (string, error) {
	html, err := rs.page.Context(ctx).HTML()
	if err != nil {
		return "", rs.classify(ctx, fmt.Errorf("failed to read page content: %w", err))
	}
	return html, nil
}

func (rs *RodScraper) CountCells(ctx context.Context) (int, error) {
	res, err := rs.page.Context(ctx).Eval(rs.selectors.countFunc())
	if err != nil {
		return 0, rs.classify(ctx, err)
	}
	return res.Value.Int(), nil
}

func (rs *RodScraper) Scroll(ctx context.Context) error {
	_, err := rs.page.Context(ctx).Eval(rs.selectors.scrollFunc())
	return rs.classify(ctx, err)
}

func (rs *RodScraper) WaitForCells(ctx context.Context, timeout time.Duration) error {
	_, err := rs.page.Context(ctx).Timeout(timeout).Element(rs.selectors.Cell)
	if err != nil && ctx.Err() == nil {
		if lost := rs.classify(ctx, err); lost != err {
			return lost
		}
		return fmt.Errorf("timed out after %s waiting for follower cells: %w", timeout, err)
	}
	return err
}

func (rs *RodScraper) ExtractFollowers(ctx context.Context) ([]types.FollowerRecord, error) {
	html, err := rs.Content(ctx)
	if err != nil {
		return nil, err
	}
	return ParseFollowers(html, rs.selectors)
}

func (rs *RodScraper) Close() {
	if rs.page != nil {
		rs.page.Close()
	}
	if rs.browser != nil {
		rs.browser.Close()
	}
	if rs.launcher != nil {
		rs.launcher.Cleanup()
	}
}

// classify reports err as ErrSessionLost when the browser no longer answers.
func (rs *RodScraper) classify(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil {
		return err
	}
	if _, pingErr := (proto.BrowserGetVersion{}).Call(rs.browser); pingErr != nil {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}
