package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/pkg/types"
)

// ErrSessionLost means the browser session is gone and collection cannot
// continue.
var ErrSessionLost = errors.New("browser session lost")

// Page is the part of a browser session the collector drives.
type Page interface {
	// CountCells returns the number of rendered follower cells.
	CountCells(ctx context.Context) (int, error)
	// Scroll issues one scroll step on the followers list.
	Scroll(ctx context.Context) error
	// WaitForCells blocks until at least one follower cell is rendered.
	WaitForCells(ctx context.Context, timeout time.Duration) error
	// ExtractFollowers reads every currently rendered follower record.
	ExtractFollowers(ctx context.Context) ([]types.FollowerRecord, error)
}

// Clock abstracts time so tests can run the loop without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }

// Checkpointer persists the followers collected so far.
type Checkpointer func(ctx context.Context, followers []types.FollowerRecord) error

type CollectorConfig struct {
	ScrollSleep        time.Duration
	WaitTimeout        time.Duration
	WaitInterval       time.Duration
	InitialWaitTimeout time.Duration
	StallLimit         int
	ScrollLimit        int
	CheckpointInterval int
}

func CollectorConfigFrom(cfg config.CollectorConfig) CollectorConfig {
	return CollectorConfig{
		ScrollSleep:        config.Duration(cfg.ScrollSleep),
		WaitTimeout:        config.Duration(cfg.WaitTimeout),
		WaitInterval:       config.Duration(cfg.WaitInterval),
		InitialWaitTimeout: config.Duration(cfg.InitialWaitTimeout),
		StallLimit:         cfg.StallLimit,
		ScrollLimit:        cfg.ScrollLimit,
		CheckpointInterval: cfg.CheckpointInterval,
	}
}

type Termination string

const (
	TerminationStalled     Termination = "stalled"
	TerminationScrollLimit Termination = "scroll_limit"
	TerminationAborted     Termination = "aborted"
)

type CollectResult struct {
	Followers        []types.FollowerRecord
	Scrolls          int
	Termination      Termination
	ExtractionErrors int
	Checkpoints      int
}

// Collector scrolls a followers list until it stops growing.
type Collector struct {
	cfg        CollectorConfig
	clock      Clock
	checkpoint Checkpointer
	logger     *logrus.Logger
}

func NewCollector(cfg CollectorConfig, logger *logrus.Logger, checkpoint Checkpointer) *Collector {
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = 200 * time.Millisecond
	}
	return &Collector{
		cfg:        cfg,
		clock:      RealClock(),
		checkpoint: checkpoint,
		logger:     logger,
	}
}

func (c *Collector) SetClock(clock Clock) {
	c.clock = clock
}

// Collect gathers followers from page. It stops after StallLimit consecutive
// scrolls that found no new username, or after ScrollLimit scrolls. On a lost
// session it returns what was gathered so far together with the error.
func (c *Collector) Collect(ctx context.Context, page Page) (*CollectResult, error) {
	c.logger.Info("Starting follower collection process...")

	result := &CollectResult{}
	followers := NewFollowerSet()

	abort := func(err error) (*CollectResult, error) {
		result.Followers = followers.Records()
		result.Termination = TerminationAborted
		c.logger.Errorf("Follower collection aborted after %d scrolls with %d followers: %v",
			result.Scrolls, followers.Len(), err)
		return result, err
	}

	if err := page.WaitForCells(ctx, c.cfg.InitialWaitTimeout); err != nil {
		if c.fatal(ctx, err) {
			return abort(err)
		}
		c.logger.Warnf("Could not find follower cells: %v. Continuing with what has rendered", err)
	} else {
		c.logger.Info("Initial followers loaded")
	}

	initial, err := c.extract(ctx, page, result)
	if err != nil {
		return abort(err)
	}
	followers.Merge(initial)
	c.logger.Infof("Initial collection: %d unique followers", followers.Len())

	stalled := 0
	for stalled < c.cfg.StallLimit && result.Scrolls < c.cfg.ScrollLimit {
		result.Scrolls++
		c.logger.Debugf("Scroll #%d", result.Scrolls)

		rendered, err := page.CountCells(ctx)
		if err != nil {
			if c.fatal(ctx, err) {
				return abort(err)
			}
			c.logger.Warnf("Error counting cells: %v", err)
			rendered = 0
		}

		if err := page.Scroll(ctx); err != nil {
			if c.fatal(ctx, err) {
				return abort(err)
			}
			c.logger.Warnf("Scroll error: %v", err)
		}
		if err := c.clock.Sleep(ctx, c.cfg.ScrollSleep); err != nil {
			return abort(err)
		}

		if err := c.waitForNewContent(ctx, page, rendered); err != nil {
			return abort(err)
		}

		records, err := c.extract(ctx, page, result)
		if err != nil {
			return abort(err)
		}

		added := followers.Merge(records)
		c.logger.Debugf("New followers found: %d", added)

		if added == 0 {
			stalled++
			c.logger.Debugf("No new followers (%d/%d)", stalled, c.cfg.StallLimit)
		} else {
			stalled = 0
		}

		if c.cfg.CheckpointInterval > 0 && result.Scrolls%c.cfg.CheckpointInterval == 0 {
			c.saveCheckpoint(ctx, followers, result)
		}
	}

	if stalled >= c.cfg.StallLimit {
		result.Termination = TerminationStalled
	} else {
		result.Termination = TerminationScrollLimit
		c.logger.Warnf("Scroll limit of %d reached, the follower list may be incomplete", c.cfg.ScrollLimit)
	}

	result.Followers = followers.Records()
	c.logger.Infof("Scrolling completed! Total followers collected: %d", len(result.Followers))
	return result, nil
}

// waitForNewContent polls until more than old cells are rendered or the wait
// times out. Only session-fatal errors are returned.
func (c *Collector) waitForNewContent(ctx context.Context, page Page, old int) error {
	deadline := c.clock.Now().Add(c.cfg.WaitTimeout)
	for c.clock.Now().Before(deadline) {
		count, err := page.CountCells(ctx)
		if err != nil {
			if c.fatal(ctx, err) {
				return err
			}
			c.logger.Debugf("Waiting for new content: %v", err)
		} else if count > old {
			return nil
		}
		if err := c.clock.Sleep(ctx, c.cfg.WaitInterval); err != nil {
			return err
		}
	}
	return nil
}

// extract reads the rendered records. Non-fatal failures count as an empty
// result.
func (c *Collector) extract(ctx context.Context, page Page, result *CollectResult) ([]types.FollowerRecord, error) {
	records, err := page.ExtractFollowers(ctx)
	if err != nil {
		if c.fatal(ctx, err) {
			return nil, err
		}
		result.ExtractionErrors++
		c.logger.Errorf("Error extracting follower data: %v", err)
		return nil, nil
	}
	return records, nil
}

func (c *Collector) saveCheckpoint(ctx context.Context, followers *FollowerSet, result *CollectResult) {
	if c.checkpoint == nil {
		return
	}
	if err := c.checkpoint(ctx, followers.Records()); err != nil {
		c.logger.Errorf("Failed to save progress checkpoint: %v", err)
		return
	}
	result.Checkpoints++
	c.logger.Infof("Progress checkpoint: %d followers collected", followers.Len())
}

func (c *Collector) fatal(ctx context.Context, err error) bool {
	return errors.Is(err, ErrSessionLost) || ctx.Err() != nil
}
