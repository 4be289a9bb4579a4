package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"followers-monitor/internal/config"
	"followers-monitor/pkg/types"
)

// SeleniumScraper drives a browser through a remote WebDriver endpoint
// (geckodriver, chromedriver or a Selenium grid).
type SeleniumScraper struct {
	driver    selenium.WebDriver
	selectors Selectors
	settle    time.Duration
	logger    *logrus.Logger
}

func NewSeleniumScraper(cfg config.BrowserConfig, sel Selectors, logger *logrus.Logger) (*SeleniumScraper, error) {
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		fmt.Sprintf("--window-size=%d,%d", cfg.WindowWidth, cfg.WindowHeight),
	}
	if cfg.Headless {
		args = append(args, "--headless")
	}

	caps := selenium.Capabilities{
		"browserName": cfg.SeleniumBrowser,
	}
	switch cfg.SeleniumBrowser {
	case "chrome":
		caps.AddChrome(chrome.Capabilities{
			Args: append(args, "--user-agent="+cfg.UserAgent),
		})
	default:
		caps.AddFirefox(firefox.Capabilities{
			Args: args,
			Prefs: map[string]interface{}{
				"general.useragent.override": cfg.UserAgent,
				"dom.webdriver.enabled":      false,
				"useAutomationExtension":     false,
			},
		})
	}

	driver, err := selenium.NewRemote(caps, cfg.SeleniumURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open WebDriver session at %s: %w", cfg.SeleniumURL, err)
	}

	return &SeleniumScraper{
		driver:    driver,
		selectors: sel,
		settle:    settleDelay(cfg),
		logger:    logger,
	}, nil
}

// Open visits the site origin first, because WebDriver only accepts cookies
// for the current domain.
func (ss *SeleniumScraper) Open(ctx context.Context, pageURL string, cookies []Cookie) error {
	origin, err := siteOrigin(pageURL)
	if err != nil {
		return err
	}
	if err := ss.driver.Get(origin); err != nil {
		return ss.classify(ctx, fmt.Errorf("failed to navigate to %s: %w", origin, err))
	}

	for _, cookie := range cookies {
		seleniumCookie := &selenium.Cookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: cookie.Domain,
			Path:   cookie.Path,
			Secure: cookie.Secure,
		}
		if expires := cookie.ExpiresAt(); !expires.IsZero() {
			seleniumCookie.Expiry = uint(expires.Unix())
		}
		if err := ss.driver.AddCookie(seleniumCookie); err != nil {
			ss.logger.Warnf("Failed to set cookie %s: %v", cookie.Name, err)
			continue
		}
		ss.logger.Debugf("Set cookie %s for domain %s", cookie.Name, cookie.Domain)
	}

	if err := ss.driver.Get(pageURL); err != nil {
		return ss.classify(ctx, fmt.Errorf("failed to open %s: %w", pageURL, err))
	}

	return RealClock().Sleep(ctx, ss.settle)
}

func (ss *SeleniumScraper) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	source, err := ss.driver.PageSource()
	if err != nil {
		return "", ss.classify(ctx, fmt.Errorf("failed to get page source: %w", err))
	}
	return source, nil
}

func (ss *SeleniumScraper) CountCells(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cells, err := ss.driver.FindElements(selenium.ByCSSSelector, ss.selectors.Cell)
	if err != nil {
		return 0, ss.classify(ctx, err)
	}
	return len(cells), nil
}

func (ss *SeleniumScraper) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := ss.driver.ExecuteScript("return "+invoke(ss.selectors.scrollFunc())+";", nil)
	return ss.classify(ctx, err)
}

func (ss *SeleniumScraper) WaitForCells(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ss.driver.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		cells, err := wd.FindElements(selenium.ByCSSSelector, ss.selectors.Cell)
		return err == nil && len(cells) > 0, nil
	}, timeout)
	return ss.classify(ctx, err)
}

func (ss *SeleniumScraper) ExtractFollowers(ctx context.Context) ([]types.FollowerRecord, error) {
	html, err := ss.Content(ctx)
	if err != nil {
		return nil, err
	}
	return ParseFollowers(html, ss.selectors)
}

func (ss *SeleniumScraper) Close() {
	if ss.driver != nil {
		ss.driver.Quit()
	}
}

// classify reports err as ErrSessionLost when the WebDriver session is gone.
func (ss *SeleniumScraper) classify(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil {
		return err
	}
	if _, urlErr := ss.driver.CurrentURL(); urlErr != nil {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}
