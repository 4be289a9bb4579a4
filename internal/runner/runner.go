// Package runner sequences one monitoring run: authenticate, collect,
// persist, compare, report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/internal/diff"
	"followers-monitor/internal/monitoring"
	"followers-monitor/internal/scraper"
	"followers-monitor/internal/storage"
	"followers-monitor/pkg/types"
)

type Notifier interface {
	Notify(ctx context.Context, changes *types.Diff)
}

type Archiver interface {
	SaveSnapshot(ctx context.Context, runID string, snap *types.Snapshot) (int64, error)
	SaveDiff(ctx context.Context, snapshotID int64, account string, at time.Time, changes *types.Diff) error
}

type Recorder interface {
	RecordRun(run monitoring.RunRecord)
}

// Deps are the collaborators of a run. Notifier, Archive and Recorder are
// optional.
type Deps struct {
	Sessions scraper.SessionFactory
	Store    *storage.Store
	Notifier Notifier
	Archive  Archiver
	Recorder Recorder
	Clock    scraper.Clock
}

type Result struct {
	RunID    string
	Snapshot *types.Snapshot
	Baseline *types.Snapshot
	Diff     *types.Diff
	Renamed  []diff.Rename
	Collect  *scraper.CollectResult
	SavedTo  string
}

type Runner struct {
	cfg    *config.Config
	deps   Deps
	logger *logrus.Logger
}

func New(cfg *config.Config, deps Deps, logger *logrus.Logger) *Runner {
	if deps.Clock == nil {
		deps.Clock = scraper.RealClock()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Run performs one collection and comparison. A failed run leaves the
// baseline untouched except for checkpoints written during collection.
func (r *Runner) Run(ctx context.Context) (result *Result, err error) {
	result = &Result{RunID: uuid.NewString()}
	started := r.deps.Clock.Now()

	defer func() {
		r.record(result, started, err)
	}()

	if err := r.cfg.Validate(); err != nil {
		return result, fmt.Errorf("invalid configuration: %w", err)
	}

	subject := r.cfg.Account.Username
	log := r.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"account": subject,
	})

	cookies, err := scraper.CookieSource{
		File:          r.cfg.Auth.CookiesFile,
		EnvVar:        r.cfg.Auth.CookiesEnv,
		DefaultDomain: r.cfg.Auth.CookieDomain,
	}.Load(r.logger)
	if err != nil {
		return result, err
	}

	log.Info("Launching browser")
	session, err := r.deps.Sessions(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		log.Info("Closing browser")
		session.Close()
	}()

	log.Infof("Navigating to %s's followers page", subject)
	if err := session.Open(ctx, r.cfg.FollowersURL(), cookies); err != nil {
		return result, fmt.Errorf("failed to open followers page: %w", err)
	}

	html, err := session.Content(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read page content: %w", err)
	}
	if err := scraper.CheckAuthenticated(html, r.cfg.Auth.LoginMarker); err != nil {
		log.Error("Not logged in properly. Check your cookies.")
		return result, err
	}
	log.Info("Page loaded successfully")

	// Checkpoints replace the latest snapshot, so the baseline must be read
	// before collection starts.
	result.Baseline = r.loadBaseline(log)

	profileBase := r.cfg.Account.BaseURL
	collector := scraper.NewCollector(
		scraper.CollectorConfigFrom(r.cfg.Collector),
		r.logger,
		r.deps.Store.Checkpointer(subject, profileBase, r.deps.Clock.Now),
	)
	collector.SetClock(r.deps.Clock)

	collected, err := collector.Collect(ctx, session)
	result.Collect = collected
	if err != nil {
		return result, fmt.Errorf("error during follower collection: %w", err)
	}

	snap := types.NewSnapshot(subject, r.deps.Clock.Now(), collected.Followers, profileBase)
	result.Snapshot = snap

	savedTo, err := r.deps.Store.Save(snap)
	if err != nil {
		return result, fmt.Errorf("failed to save snapshot: %w", err)
	}
	result.SavedTo = savedTo

	if result.Baseline == nil {
		log.Info("First run - no previous data to compare")
	} else {
		log.Infof("Comparing with data from %s", result.Baseline.Timestamp.Format(time.RFC3339))
		result.Diff = diff.Compare(result.Baseline, snap)
		result.Renamed = diff.Renamed(result.Baseline, snap)
		LogReport(log, result.Diff, result.Renamed)

		if r.deps.Notifier != nil {
			r.deps.Notifier.Notify(ctx, result.Diff)
		}
	}

	r.archive(ctx, log, result)
	return result, nil
}

func (r *Runner) loadBaseline(log logrus.FieldLogger) *types.Snapshot {
	baseline, err := r.deps.Store.Latest()
	if err != nil {
		if errors.Is(err, storage.ErrCorruptSnapshot) {
			log.Warnf("Ignoring unreadable baseline, treating this as a first run: %v", err)
		} else {
			log.Errorf("Failed to load previous data: %v", err)
		}
		return nil
	}
	return baseline
}

func (r *Runner) archive(ctx context.Context, log logrus.FieldLogger, result *Result) {
	if r.deps.Archive == nil {
		return
	}

	id, err := r.deps.Archive.SaveSnapshot(ctx, result.RunID, result.Snapshot)
	if err != nil {
		log.Errorf("Failed to archive snapshot: %v", err)
		return
	}
	if err := r.deps.Archive.SaveDiff(ctx, id, result.Snapshot.Username, result.Snapshot.Timestamp.Time, result.Diff); err != nil {
		log.Errorf("Failed to archive follow events: %v", err)
	}
}

func (r *Runner) record(result *Result, started time.Time, runErr error) {
	if r.deps.Recorder == nil {
		return
	}

	run := monitoring.RunRecord{
		RunID:     result.RunID,
		Account:   r.cfg.Account.Username,
		StartedAt: started,
		Duration:  r.deps.Clock.Now().Sub(started),
		Success:   runErr == nil,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if result.Collect != nil {
		run.Scrolls = result.Collect.Scrolls
		run.Termination = string(result.Collect.Termination)
		run.ExtractionErrors = result.Collect.ExtractionErrors
	}
	if result.Snapshot != nil {
		run.Followers = result.Snapshot.TotalFollowers
	}
	if result.Diff != nil {
		run.Added = result.Diff.AddedCount
		run.Removed = result.Diff.RemovedCount
	}

	r.deps.Recorder.RecordRun(run)
}

// LogReport writes the human-readable change summary.
func LogReport(log logrus.FieldLogger, changes *types.Diff, renamed []diff.Rename) {
	if changes == nil {
		return
	}

	log.Info("=== CHANGES SINCE LAST RUN ===")
	if changes.RemovedCount > 0 {
		log.Infof("❌ %d people unfollowed", changes.RemovedCount)
		for _, u := range changes.Removed {
			log.Infof("  - %s", u)
		}
	} else {
		log.Info("✅ No one unfollowed")
	}

	if changes.AddedCount > 0 {
		log.Infof("🎉 %d new followers:", changes.AddedCount)
		for _, u := range changes.Added {
			log.Infof("  - %s", u)
		}
	} else {
		log.Info("📊 No new followers")
	}

	net := changes.NetChange()
	switch {
	case net > 0:
		log.Infof("📈 Net gain: +%d followers", net)
	case net < 0:
		log.Infof("📉 Net loss: %d followers", net)
	default:
		log.Info("➖ No net change in followers")
	}

	for _, rn := range renamed {
		log.Infof("✏️ @%s changed their name: %s -> %s", rn.Username, rn.OldName, rn.NewName)
	}
}
