package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followers-monitor/internal/config"
	"followers-monitor/internal/monitoring"
	"followers-monitor/internal/scraper"
	"followers-monitor/internal/storage"
	"followers-monitor/pkg/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

type fakeSession struct {
	html       string
	batches    [][]types.FollowerRecord
	extractErr error

	openedURL string
	cookies   []scraper.Cookie
	extracts  int
	scrolls   int
	closed    bool
}

func (s *fakeSession) Open(ctx context.Context, pageURL string, cookies []scraper.Cookie) error {
	s.openedURL = pageURL
	s.cookies = cookies
	return nil
}

func (s *fakeSession) Content(ctx context.Context) (string, error) { return s.html, nil }

func (s *fakeSession) Close() { s.closed = true }

func (s *fakeSession) CountCells(ctx context.Context) (int, error) { return s.scrolls, nil }

func (s *fakeSession) Scroll(ctx context.Context) error {
	s.scrolls++
	return nil
}

func (s *fakeSession) WaitForCells(ctx context.Context, timeout time.Duration) error { return nil }

func (s *fakeSession) ExtractFollowers(ctx context.Context) ([]types.FollowerRecord, error) {
	i := s.extracts
	s.extracts++
	if s.extractErr != nil && i > 0 {
		return nil, s.extractErr
	}
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

type fakeNotifier struct {
	calls []*types.Diff
}

func (n *fakeNotifier) Notify(ctx context.Context, changes *types.Diff) {
	n.calls = append(n.calls, changes)
}

type fakeArchive struct {
	snapshots []*types.Snapshot
	diffs     []*types.Diff
}

func (a *fakeArchive) SaveSnapshot(ctx context.Context, runID string, snap *types.Snapshot) (int64, error) {
	a.snapshots = append(a.snapshots, snap)
	return int64(len(a.snapshots)), nil
}

func (a *fakeArchive) SaveDiff(ctx context.Context, snapshotID int64, account string, at time.Time, changes *types.Diff) error {
	a.diffs = append(a.diffs, changes)
	return nil
}

type fakeRecorder struct {
	runs []monitoring.RunRecord
}

func (r *fakeRecorder) RecordRun(run monitoring.RunRecord) {
	r.runs = append(r.runs, run)
}

type harness struct {
	cfg      *config.Config
	store    *storage.Store
	session  *fakeSession
	notifier *fakeNotifier
	archive  *fakeArchive
	recorder *fakeRecorder
	clock    *fakeClock
	runner   *Runner
	started  int
}

var runStart = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, session *fakeSession) *harness {
	t.Helper()
	dir := t.TempDir()

	cookiesFile := filepath.Join(dir, "cookies.json")
	require.NoError(t, os.WriteFile(cookiesFile,
		[]byte(`[{"name":"auth_token","value":"secret","sameSite":"no_restriction"}]`), 0600))

	cfg := config.Default()
	cfg.Account.Username = "@subject"
	cfg.Auth.CookiesFile = cookiesFile
	cfg.Auth.CookiesEnv = "FOLLOWERS_MONITOR_TEST_UNSET"
	cfg.Storage.OutputFile = filepath.Join(dir, "followers_data.json")
	cfg.Storage.HistoryDir = filepath.Join(dir, "history")
	cfg.Collector.StallLimit = 2
	cfg.Collector.CheckpointInterval = 100

	logger, _ := test.NewNullLogger()
	store, err := storage.NewStore(cfg.Storage, logger)
	require.NoError(t, err)

	h := &harness{
		cfg:      cfg,
		store:    store,
		session:  session,
		notifier: &fakeNotifier{},
		archive:  &fakeArchive{},
		recorder: &fakeRecorder{},
		clock:    &fakeClock{now: runStart},
	}
	h.runner = New(cfg, Deps{
		Sessions: func(ctx context.Context) (scraper.Session, error) {
			h.started++
			return session, nil
		},
		Store:    store,
		Notifier: h.notifier,
		Archive:  h.archive,
		Recorder: h.recorder,
		Clock:    h.clock,
	}, logger)
	return h
}

func followers(usernames ...string) []types.FollowerRecord {
	out := make([]types.FollowerRecord, 0, len(usernames))
	for _, u := range usernames {
		out = append(out, types.FollowerRecord{Name: "Name " + u, Username: u})
	}
	return out
}

func (h *harness) saveBaseline(t *testing.T, records []types.FollowerRecord) {
	t.Helper()
	_, err := h.store.Save(types.NewSnapshot("subject", runStart.Add(-24*time.Hour), records, "https://x.com"))
	require.NoError(t, err)
}

func TestRunFirstRun(t *testing.T) {
	session := &fakeSession{html: "<main>Followers</main>", batches: [][]types.FollowerRecord{followers("u1", "u2")}}
	h := newHarness(t, session)

	result, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://x.com/subject/followers", session.openedURL)
	require.Len(t, session.cookies, 1)
	assert.Equal(t, ".x.com", session.cookies[0].Domain)
	assert.True(t, session.closed)

	assert.Nil(t, result.Baseline)
	assert.Nil(t, result.Diff)
	assert.Empty(t, h.notifier.calls)
	assert.NotEmpty(t, result.RunID)

	latest, err := h.store.Latest()
	require.NoError(t, err)
	assert.Equal(t, 2, latest.TotalFollowers)
	assert.Equal(t, "subject", latest.Username)

	require.Len(t, h.archive.snapshots, 1)
	assert.Nil(t, h.archive.diffs[0])

	require.Len(t, h.recorder.runs, 1)
	assert.True(t, h.recorder.runs[0].Success)
	assert.Equal(t, 2, h.recorder.runs[0].Followers)
	assert.Equal(t, "stalled", h.recorder.runs[0].Termination)
}

func TestRunReportsChanges(t *testing.T) {
	current := []types.FollowerRecord{
		{Name: "Renamed", Username: "u2"},
		{Name: "Name u3", Username: "u3"},
	}
	session := &fakeSession{html: "<main>Followers</main>", batches: [][]types.FollowerRecord{current}}
	h := newHarness(t, session)
	h.saveBaseline(t, followers("u1", "u2"))

	result, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Diff)
	assert.Equal(t, []string{"u3"}, usernames(result.Diff.Added))
	assert.Equal(t, []string{"u1"}, usernames(result.Diff.Removed))
	require.Len(t, result.Renamed, 1)
	assert.Equal(t, "u2", result.Renamed[0].Username)

	require.Len(t, h.notifier.calls, 1)
	assert.Same(t, result.Diff, h.notifier.calls[0])
	require.Len(t, h.archive.diffs, 1)
	assert.Same(t, result.Diff, h.archive.diffs[0])

	run := h.recorder.runs[0]
	assert.Equal(t, 1, run.Added)
	assert.Equal(t, 1, run.Removed)
}

func TestRunComparesAgainstPreRunBaseline(t *testing.T) {
	var batches [][]types.FollowerRecord
	for i := 0; i < 6; i++ {
		batches = append(batches, followers(fmt.Sprintf("new%d", i)))
	}
	session := &fakeSession{html: "<main>Followers</main>", batches: batches}
	h := newHarness(t, session)
	h.cfg.Collector.CheckpointInterval = 1
	h.saveBaseline(t, followers("old"))

	result, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Baseline)
	assert.Equal(t, []string{"old"}, usernames(result.Baseline.Followers))
	assert.Equal(t, 6, result.Diff.AddedCount)
	assert.Equal(t, 1, result.Diff.RemovedCount)
	assert.Greater(t, result.Collect.Checkpoints, 0)
}

func TestRunNotAuthenticated(t *testing.T) {
	session := &fakeSession{html: "<a>Log in</a>", batches: [][]types.FollowerRecord{followers("u1")}}
	h := newHarness(t, session)
	h.saveBaseline(t, followers("u1", "u2"))

	_, err := h.runner.Run(context.Background())
	require.ErrorIs(t, err, scraper.ErrNotAuthenticated)

	assert.True(t, session.closed)
	assert.Equal(t, 0, session.extracts)
	assert.Empty(t, h.notifier.calls)

	latest, err := h.store.Latest()
	require.NoError(t, err)
	assert.Equal(t, 2, latest.TotalFollowers, "baseline must be untouched")

	require.Len(t, h.recorder.runs, 1)
	assert.False(t, h.recorder.runs[0].Success)
}

func TestRunMissingCredentials(t *testing.T) {
	session := &fakeSession{}
	h := newHarness(t, session)
	h.cfg.Auth.CookiesFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := h.runner.Run(context.Background())
	require.ErrorIs(t, err, scraper.ErrNoCredentials)
	assert.Equal(t, 0, h.started, "no browser may start without credentials")
}

func TestRunMissingUsername(t *testing.T) {
	h := newHarness(t, &fakeSession{})
	h.cfg.Account.Username = "  "

	_, err := h.runner.Run(context.Background())
	require.ErrorIs(t, err, config.ErrMissingUsername)
	assert.Equal(t, 0, h.started)
}

func TestRunSessionLost(t *testing.T) {
	session := &fakeSession{
		html:       "<main>Followers</main>",
		batches:    [][]types.FollowerRecord{followers("u9")},
		extractErr: fmt.Errorf("evaluate: %w", scraper.ErrSessionLost),
	}
	h := newHarness(t, session)
	h.saveBaseline(t, followers("u1"))

	result, err := h.runner.Run(context.Background())
	require.ErrorIs(t, err, scraper.ErrSessionLost)

	assert.Nil(t, result.Snapshot)
	assert.Nil(t, result.Diff)
	assert.Empty(t, h.notifier.calls)
	assert.Empty(t, h.archive.snapshots)

	latest, err := h.store.Latest()
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, usernames(latest.Followers))

	run := h.recorder.runs[0]
	assert.False(t, run.Success)
	assert.Equal(t, "aborted", run.Termination)
	assert.Contains(t, run.Error, "browser session lost")
}

func usernames(records []types.FollowerRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Username)
	}
	return out
}
