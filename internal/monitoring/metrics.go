package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/internal/utils"
)

const maxRecentRuns = 50

// RunRecord describes one collection run.
type RunRecord struct {
	RunID            string        `json:"run_id"`
	Account          string        `json:"account"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
	Followers        int           `json:"followers"`
	Added            int           `json:"added"`
	Removed          int           `json:"removed"`
	Scrolls          int           `json:"scrolls"`
	Termination      string        `json:"termination"`
	ExtractionErrors int           `json:"extraction_errors"`
}

type Metrics struct {
	Runs           int                      `json:"runs"`
	FailedRuns     int                      `json:"failed_runs"`
	LastRun        time.Time                `json:"last_run"`
	LastSuccess    time.Time                `json:"last_success"`
	AverageRunTime time.Duration            `json:"average_run_time"`
	ErrorRate      float64                  `json:"error_rate"`
	Accounts       map[string]AccountMetric `json:"accounts"`
	Recent         []RunRecord              `json:"recent"`
}

type AccountMetric struct {
	Followers         int           `json:"followers"`
	PreviousFollowers int           `json:"previous_followers"`
	TotalAdded        int           `json:"total_added"`
	TotalRemoved      int           `json:"total_removed"`
	LastScraped       time.Time     `json:"last_scraped"`
	AverageRunTime    time.Duration `json:"average_run_time"`
	ErrorCount        int           `json:"error_count"`
}

type Monitor struct {
	metrics     *Metrics
	logger      *logrus.Logger
	metricsFile string
	now         func() time.Time
}

func NewMonitor(logger *logrus.Logger, metricsFile string) *Monitor {
	monitor := &Monitor{
		metrics: &Metrics{
			Accounts: make(map[string]AccountMetric),
		},
		logger:      logger,
		metricsFile: metricsFile,
		now:         time.Now,
	}

	monitor.loadMetrics()
	return monitor
}

func (m *Monitor) SetNow(now func() time.Time) {
	m.now = now
}

// RecordRun folds one run into the totals and persists the metrics file.
func (m *Monitor) RecordRun(run RunRecord) {
	m.metrics.Runs++
	m.metrics.LastRun = run.StartedAt.Add(run.Duration)
	if run.Success {
		m.metrics.LastSuccess = m.metrics.LastRun
	} else {
		m.metrics.FailedRuns++
	}

	if m.metrics.Runs > 1 {
		m.metrics.AverageRunTime = (m.metrics.AverageRunTime + run.Duration) / 2
	} else {
		m.metrics.AverageRunTime = run.Duration
	}
	m.metrics.ErrorRate = float64(m.metrics.FailedRuns) / float64(m.metrics.Runs) * 100

	account := m.metrics.Accounts[run.Account]
	if run.Success {
		account.PreviousFollowers = account.Followers
		account.Followers = run.Followers
		account.TotalAdded += run.Added
		account.TotalRemoved += run.Removed
		account.LastScraped = m.metrics.LastRun
	} else {
		account.ErrorCount++
	}
	if account.AverageRunTime == 0 {
		account.AverageRunTime = run.Duration
	} else {
		account.AverageRunTime = (account.AverageRunTime + run.Duration) / 2
	}
	m.metrics.Accounts[run.Account] = account

	m.metrics.Recent = append(m.metrics.Recent, run)
	if len(m.metrics.Recent) > maxRecentRuns {
		m.metrics.Recent = m.metrics.Recent[len(m.metrics.Recent)-maxRecentRuns:]
	}

	m.saveMetrics()

	m.logger.Infof("Recorded run for @%s: %d followers, +%d/-%d, %v duration, success=%t",
		run.Account, run.Followers, run.Added, run.Removed, run.Duration.Round(time.Second), run.Success)
}

func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// LastRecord returns the most recent run, if any.
func (m *Monitor) LastRecord() (RunRecord, bool) {
	if len(m.metrics.Recent) == 0 {
		return RunRecord{}, false
	}
	return m.metrics.Recent[len(m.metrics.Recent)-1], true
}

func (m *Monitor) GetHealthStatus(staleAfter time.Duration) map[string]interface{} {
	status := map[string]interface{}{
		"status":          "healthy",
		"last_run":        m.metrics.LastRun.Format(time.RFC3339),
		"total_runs":      m.metrics.Runs,
		"error_rate":      fmt.Sprintf("%.2f%%", m.metrics.ErrorRate),
		"average_runtime": m.metrics.AverageRunTime.String(),
	}

	if m.metrics.Runs == 0 {
		status["status"] = "unknown"
		status["warning"] = "No collection runs recorded yet"
		return status
	}

	if utils.IsOlderThan(m.metrics.LastRun, staleAfter, m.now()) {
		status["status"] = "warning"
		status["warning"] = fmt.Sprintf("No collection runs in the last %s", staleAfter)
	}

	if last, ok := m.LastRecord(); ok && !last.Success {
		status["status"] = "warning"
		status["warning"] = "Last collection run failed"
	}

	return status
}

func (m *Monitor) GenerateReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Followers Monitor Report
========================
Generated: %s

Overall Statistics:
- Total Runs: %d
- Failed Runs: %d
- Error Rate: %.2f%%
- Average Run Time: %s
- Last Run: %s
- Last Successful Run: %s

Accounts:
`,
		m.now().Format("2006-01-02 15:04:05"),
		m.metrics.Runs,
		m.metrics.FailedRuns,
		m.metrics.ErrorRate,
		m.metrics.AverageRunTime,
		formatTime(m.metrics.LastRun),
		formatTime(m.metrics.LastSuccess),
	)

	accounts := make([]string, 0, len(m.metrics.Accounts))
	for name := range m.metrics.Accounts {
		accounts = append(accounts, name)
	}
	sort.Strings(accounts)

	for _, name := range accounts {
		metric := m.metrics.Accounts[name]
		fmt.Fprintf(&b, `
- @%s:
  Followers: %d (previous %d)
  Gained / Lost: +%d / -%d
  Last Scraped: %s
  Average Runtime: %s
  Errors: %d
`,
			name,
			metric.Followers,
			metric.PreviousFollowers,
			metric.TotalAdded,
			metric.TotalRemoved,
			formatTime(metric.LastScraped),
			metric.AverageRunTime,
			metric.ErrorCount,
		)
	}

	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func (m *Monitor) loadMetrics() {
	data, err := os.ReadFile(m.metricsFile)
	if os.IsNotExist(err) {
		m.logger.Info("No existing metrics file found, starting fresh")
		return
	}
	if err != nil {
		m.logger.Warnf("Failed to read metrics file: %v", err)
		return
	}

	if err := json.Unmarshal(data, m.metrics); err != nil {
		m.logger.Warnf("Failed to parse metrics file: %v", err)
		return
	}
	if m.metrics.Accounts == nil {
		m.metrics.Accounts = make(map[string]AccountMetric)
	}

	m.logger.Debug("Loaded existing metrics from file")
}

func (m *Monitor) saveMetrics() {
	data, err := json.MarshalIndent(m.metrics, "", "  ")
	if err != nil {
		m.logger.Errorf("Failed to marshal metrics: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.metricsFile), 0755); err != nil {
		m.logger.Errorf("Failed to create metrics directory: %v", err)
		return
	}
	if err := os.WriteFile(m.metricsFile, data, 0644); err != nil {
		m.logger.Errorf("Failed to save metrics: %v", err)
		return
	}
}

// AlertManager handles alerting based on metrics
type AlertManager struct {
	monitor          *Monitor
	staleAfter       time.Duration
	dropAlertPercent float64
	logger           *logrus.Logger
}

func NewAlertManager(monitor *Monitor, cfg config.MonitoringConfig, logger *logrus.Logger) *AlertManager {
	staleAfter := config.Duration(cfg.StaleAfter)
	if staleAfter <= 0 {
		staleAfter = 25 * time.Hour
	}
	return &AlertManager{
		monitor:          monitor,
		staleAfter:       staleAfter,
		dropAlertPercent: cfg.DropAlertPercent,
		logger:           logger,
	}
}

func (am *AlertManager) CheckAlerts() []string {
	var alerts []string
	metrics := am.monitor.GetMetrics()

	if metrics.Runs == 0 {
		return []string{"ALERT: No collection runs have been recorded"}
	}

	if utils.IsOlderThan(metrics.LastRun, am.staleAfter, am.monitor.now()) {
		alerts = append(alerts, fmt.Sprintf("ALERT: Monitor hasn't run in over %s", am.staleAfter))
	}

	last, _ := am.monitor.LastRecord()
	if !last.Success {
		alerts = append(alerts, fmt.Sprintf("ALERT: Last run for @%s failed: %s", last.Account, last.Error))
	}
	if last.Termination == "scroll_limit" {
		alerts = append(alerts, fmt.Sprintf("ALERT: Last run for @%s hit the scroll limit after %d scrolls, the follower list may be incomplete",
			last.Account, last.Scrolls))
	}

	if am.dropAlertPercent > 0 {
		names := make([]string, 0, len(metrics.Accounts))
		for name := range metrics.Accounts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			account := metrics.Accounts[name]
			if account.PreviousFollowers == 0 {
				continue
			}
			drop := float64(account.PreviousFollowers-account.Followers) / float64(account.PreviousFollowers) * 100
			if drop > am.dropAlertPercent {
				alerts = append(alerts, fmt.Sprintf("ALERT: Followers of @%s dropped %.1f%% (%d -> %d)",
					name, drop, account.PreviousFollowers, account.Followers))
			}
		}
	}

	return alerts
}

func (am *AlertManager) SendAlerts(alerts []string) {
	for _, alert := range alerts {
		am.logger.Warn(alert)
	}
}
