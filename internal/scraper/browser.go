package scraper

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/pkg/types"
)

// BrowserScraper drives a headless Chrome through chromedp.
type BrowserScraper struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	selectors   Selectors
	settle      time.Duration
	logger      *logrus.Logger
}

func NewBrowserScraper(cfg config.BrowserConfig, sel Selectors, logger *logrus.Logger) (*BrowserScraper, error) {
	if !isChromeAvailable() {
		return nil, fmt.Errorf("no suitable browser found for automation")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	if timeout := config.Duration(cfg.SessionTimeout); timeout > 0 {
		var timeoutCancel context.CancelFunc
		allocCtx, timeoutCancel = context.WithTimeout(allocCtx, timeout)
		parentCancel := allocCancel
		allocCancel = func() {
			timeoutCancel()
			parentCancel()
		}
	}
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
	)

	bs := &BrowserScraper{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		selectors:   sel,
		settle:      settleDelay(cfg),
		logger:      logger,
	}

	// The first Run allocates the browser and must use the browser context
	// itself, not a cancellable child.
	if err := chromedp.Run(browserCtx); err != nil {
		bs.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("Launched browser in headless mode")
	return bs, nil
}

func (bs *BrowserScraper) Open(ctx context.Context, pageURL string, cookies []Cookie) error {
	err := bs.run(ctx,
		bs.setCookies(cookies),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(bs.settle),
	)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", pageURL, err)
	}
	return nil
}

func (bs *BrowserScraper) Content(ctx context.Context) (string, error) {
	var html string
	if err := bs.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (bs *BrowserScraper) CountCells(ctx context.Context) (int, error) {
	var count int
	if err := bs.run(ctx, chromedp.Evaluate(invoke(bs.selectors.countFunc()), &count)); err != nil {
		return 0, err
	}
	return count, nil
}

func (bs *BrowserScraper) Scroll(ctx context.Context) error {
	return bs.run(ctx, chromedp.Evaluate(invoke(bs.selectors.scrollFunc()), nil))
}

func (bs *BrowserScraper) WaitForCells(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := bs.run(waitCtx, chromedp.WaitReady(bs.selectors.Cell, chromedp.ByQuery))
	if err != nil && ctx.Err() == nil && waitCtx.Err() != nil {
		return fmt.Errorf("timed out after %s waiting for follower cells", timeout)
	}
	return err
}

func (bs *BrowserScraper) ExtractFollowers(ctx context.Context) ([]types.FollowerRecord, error) {
	html, err := bs.Content(ctx)
	if err != nil {
		return nil, err
	}
	return ParseFollowers(html, bs.selectors)
}

func (bs *BrowserScraper) Close() {
	bs.cancel()
	bs.allocCancel()
}

// run executes actions on the browser tab, bounded by ctx. A dead browser
// context is reported as ErrSessionLost.
func (bs *BrowserScraper) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(bs.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if bs.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (bs *BrowserScraper) setCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			params := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HttpOnly).
				WithSameSite(network.CookieSameSite(cookie.SameSite))
			if expires := cookie.ExpiresAt(); !expires.IsZero() {
				epoch := cdp.TimeSinceEpoch(expires)
				params = params.WithExpires(&epoch)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", cookie.Name, err)
			}
		}
		return nil
	})
}

func isChromeAvailable() bool {
	paths := []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"}
	for _, path := range paths {
		if _, err := exec.LookPath(path); err == nil {
			return true
		}
	}
	return false
}
