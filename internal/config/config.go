package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

var ErrMissingUsername = errors.New("X_USERNAME environment variable is required")

type Config struct {
	Account    AccountConfig    `yaml:"account"`
	Auth       AuthConfig       `yaml:"auth"`
	Browser    BrowserConfig    `yaml:"browser"`
	Collector  CollectorConfig  `yaml:"collector"`
	Storage    StorageConfig    `yaml:"storage"`
	Notify     NotifyConfig     `yaml:"notify"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type AccountConfig struct {
	Username string `yaml:"username"`
	BaseURL  string `yaml:"base_url"`
}

type AuthConfig struct {
	CookiesFile  string `yaml:"cookies_file"`
	CookiesEnv   string `yaml:"cookies_env"`
	CookieDomain string `yaml:"cookie_domain"`
	LoginMarker  string `yaml:"login_marker"`
}

type BrowserConfig struct {
	Engine          string `yaml:"engine"`
	Headless        bool   `yaml:"headless"`
	UserAgent       string `yaml:"user_agent"`
	WindowWidth     int    `yaml:"window_width"`
	WindowHeight    int    `yaml:"window_height"`
	SettleDelay     string `yaml:"settle_delay"`
	SessionTimeout  string `yaml:"session_timeout"`
	SeleniumURL     string `yaml:"selenium_url"`
	SeleniumBrowser string `yaml:"selenium_browser"`
}

type CollectorConfig struct {
	ScrollSleep        string         `yaml:"scroll_sleep"`
	WaitTimeout        string         `yaml:"wait_timeout"`
	WaitInterval       string         `yaml:"wait_interval"`
	InitialWaitTimeout string         `yaml:"initial_wait_timeout"`
	StallLimit         int            `yaml:"stall_limit"`
	ScrollLimit        int            `yaml:"scroll_limit"`
	CheckpointInterval int            `yaml:"checkpoint_interval"`
	Selectors          SelectorConfig `yaml:"selectors"`
}

type SelectorConfig struct {
	Cell     string `yaml:"cell"`
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Timeline string `yaml:"timeline"`
}

type StorageConfig struct {
	OutputFile string `yaml:"output_file"`
	HistoryDir string `yaml:"history_dir"`
}

type NotifyConfig struct {
	WebhookURL           string `yaml:"webhook_url"`
	DisplayName          string `yaml:"display_name"`
	AvatarURL            string `yaml:"avatar_url"`
	MaxDescriptionLength int    `yaml:"max_description_length"`
	Timeout              string `yaml:"timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type APIConfig struct {
	Port string `yaml:"port"`
}

type MonitoringConfig struct {
	MetricsFile      string  `yaml:"metrics_file"`
	StaleAfter       string  `yaml:"stale_after"`
	DropAlertPercent float64 `yaml:"drop_alert_percent"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			BaseURL: "https://x.com",
		},
		Auth: AuthConfig{
			CookiesFile:  "cookies.json",
			CookiesEnv:   "X_COOKIES",
			CookieDomain: ".x.com",
			LoginMarker:  "log in",
		},
		Browser: BrowserConfig{
			Engine:          "chromedp",
			Headless:        true,
			UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:     1920,
			WindowHeight:    4200,
			SettleDelay:     "3s",
			SessionTimeout:  "60m",
			SeleniumURL:     "http://localhost:4444",
			SeleniumBrowser: "firefox",
		},
		Collector: CollectorConfig{
			ScrollSleep:        "1500ms",
			WaitTimeout:        "5s",
			WaitInterval:       "200ms",
			InitialWaitTimeout: "15s",
			StallLimit:         10,
			ScrollLimit:        500,
			CheckpointInterval: 15,
			Selectors: SelectorConfig{
				Cell:     `div[data-testid="cellInnerDiv"]`,
				Name:     `a[role="link"] div[dir="ltr"] > span > span, a[role="link"] span > span`,
				Username: `div[dir="ltr"] > span`,
				Timeline: `div[aria-label="Timeline: Followers"]`,
			},
		},
		Storage: StorageConfig{
			OutputFile: "followers_data.json",
			HistoryDir: "followers_history",
		},
		Notify: NotifyConfig{
			DisplayName:          "X Followers Monitor",
			AvatarURL:            "https://developers.elementor.com/docs/assets/img/elementor-placeholder-image.png",
			MaxDescriptionLength: 4000,
			Timeout:              "15s",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "followers",
			User:    "postgres",
			SSLMode: "disable",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		API: APIConfig{
			Port: "8080",
		},
		Monitoring: MonitoringConfig{
			MetricsFile:      "data/metrics.json",
			StaleAfter:       "25h",
			DropAlertPercent: 10,
		},
	}
}

// Load reads configFile over the defaults and applies environment overrides.
// An empty configFile skips the file.
func Load(configFile string) (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	config := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configFile)
		}

		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if username := os.Getenv("X_USERNAME"); username != "" {
		c.Account.Username = username
	}
	if cookiesFile := os.Getenv("COOKIES_FILE"); cookiesFile != "" {
		c.Auth.CookiesFile = cookiesFile
	}
	if webhook := os.Getenv("DISCORD_WEBHOOK_URL"); webhook != "" {
		c.Notify.WebhookURL = webhook
	}
	if engine := os.Getenv("BROWSER_ENGINE"); engine != "" {
		c.Browser.Engine = engine
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			c.Database.Port = port
		}
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		c.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		c.Database.Name = dbName
	}
	if dbSSL := os.Getenv("DB_SSL_MODE"); dbSSL != "" {
		c.Database.SSLMode = dbSSL
	}
}

// Validate checks the settings a collection run cannot start without.
func (c *Config) Validate() error {
	c.Account.Username = strings.TrimPrefix(strings.TrimSpace(c.Account.Username), "@")
	if c.Account.Username == "" {
		return ErrMissingUsername
	}

	switch c.Browser.Engine {
	case "chromedp", "rod", "selenium":
	default:
		return fmt.Errorf("unknown browser engine %q", c.Browser.Engine)
	}

	if c.Collector.StallLimit <= 0 {
		return fmt.Errorf("collector.stall_limit must be positive, got %d", c.Collector.StallLimit)
	}
	if c.Collector.ScrollLimit <= 0 {
		return fmt.Errorf("collector.scroll_limit must be positive, got %d", c.Collector.ScrollLimit)
	}

	durations := map[string]string{
		"collector.scroll_sleep":         c.Collector.ScrollSleep,
		"collector.wait_timeout":         c.Collector.WaitTimeout,
		"collector.wait_interval":        c.Collector.WaitInterval,
		"collector.initial_wait_timeout": c.Collector.InitialWaitTimeout,
		"browser.settle_delay":           c.Browser.SettleDelay,
		"browser.session_timeout":        c.Browser.SessionTimeout,
		"notify.timeout":                 c.Notify.Timeout,
		"monitoring.stale_after":         c.Monitoring.StaleAfter,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	return nil
}

// FollowersURL is the page listing the monitored account's followers.
func (c *Config) FollowersURL() string {
	return fmt.Sprintf("%s/%s/followers", strings.TrimRight(c.Account.BaseURL, "/"), c.Account.Username)
}

// Duration parses a validated duration setting. Invalid values yield zero.
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
