package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"followers-monitor/internal/database/models"
	"followers-monitor/pkg/types"
)

// SaveSnapshot archives snap and its follower rows in one transaction and
// returns the new snapshot id.
func (db *DB) SaveSnapshot(ctx context.Context, runID string, snap *types.Snapshot) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO snapshots (run_id, account, taken_at, total_followers)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		runID, snap.Username, snap.Timestamp.Time, snap.TotalFollowers,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	usernames, names, urls := followerColumns(snap.Followers)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_followers (snapshot_id, username, name, profile_url)
		SELECT $1, u.username, u.name, u.profile_url
		FROM unnest($2::text[], $3::text[], $4::text[]) AS u(username, name, profile_url)`,
		id, pq.Array(usernames), pq.Array(names), pq.Array(urls),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot followers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	db.logger.Debugf("Archived snapshot %d with %d followers", id, snap.TotalFollowers)
	return id, nil
}

// SaveDiff records one follow or unfollow event per changed follower.
func (db *DB) SaveDiff(ctx context.Context, snapshotID int64, account string, at time.Time, diff *types.Diff) error {
	if diff.Empty() {
		return nil
	}

	events := FollowEvents(snapshotID, account, at, diff)
	usernames := make([]string, len(events))
	names := make([]string, len(events))
	kinds := make([]string, len(events))
	for i, e := range events {
		usernames[i] = e.Username
		names[i] = e.Name
		kinds[i] = string(e.Kind)
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO follow_events (snapshot_id, account, username, name, kind, occurred_at)
		SELECT $1, $2, e.username, e.name, e.kind, $3
		FROM unnest($4::text[], $5::text[], $6::text[]) AS e(username, name, kind)`,
		snapshotID, account, at, pq.Array(usernames), pq.Array(names), pq.Array(kinds),
	)
	if err != nil {
		return fmt.Errorf("failed to insert follow events: %w", err)
	}

	db.logger.Debugf("Archived %d follow events", len(events))
	return nil
}

// FollowEvents flattens a diff into event rows, unfollows first.
func FollowEvents(snapshotID int64, account string, at time.Time, diff *types.Diff) []models.FollowEvent {
	if diff == nil {
		return nil
	}
	events := make([]models.FollowEvent, 0, len(diff.Removed)+len(diff.Added))
	for _, f := range diff.Removed {
		events = append(events, models.FollowEvent{
			SnapshotID: snapshotID, Account: account, Username: f.Username,
			Name: f.Name, Kind: models.EventUnfollow, OccurredAt: at,
		})
	}
	for _, f := range diff.Added {
		events = append(events, models.FollowEvent{
			SnapshotID: snapshotID, Account: account, Username: f.Username,
			Name: f.Name, Kind: models.EventFollow, OccurredAt: at,
		})
	}
	return events
}

func followerColumns(followers []types.FollowerRecord) (usernames, names, urls []string) {
	usernames = make([]string, len(followers))
	names = make([]string, len(followers))
	urls = make([]string, len(followers))
	for i, f := range followers {
		usernames[i] = f.Username
		names[i] = f.Name
		urls[i] = f.ProfileURL
	}
	return usernames, names, urls
}

func (db *DB) GetSnapshots(ctx context.Context, account string, limit int) ([]*models.SnapshotRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, run_id, account, taken_at, total_followers, created_at
		FROM snapshots
		WHERE account = $1
		ORDER BY taken_at DESC
		LIMIT $2`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.SnapshotRow
	for rows.Next() {
		s := &models.SnapshotRow{}
		if err := rows.Scan(&s.ID, &s.RunID, &s.Account, &s.TakenAt, &s.TotalFollowers, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (db *DB) GetFollowEvents(ctx context.Context, account string, limit int) ([]*models.FollowEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, snapshot_id, account, username, name, kind, occurred_at
		FROM follow_events
		WHERE account = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query follow events: %w", err)
	}
	defer rows.Close()

	var events []*models.FollowEvent
	for rows.Next() {
		e := &models.FollowEvent{}
		if err := rows.Scan(&e.ID, &e.SnapshotID, &e.Account, &e.Username, &e.Name, &e.Kind, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetStats summarizes the archive for one account.
func (db *DB) GetStats(ctx context.Context, account string) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var snapshots int
	var lastTaken sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(taken_at) FROM snapshots WHERE account = $1`, account,
	).Scan(&snapshots, &lastTaken)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot count: %w", err)
	}
	stats["snapshots"] = snapshots
	if lastTaken.Valid {
		stats["last_snapshot"] = lastTaken.Time.UTC().Format(time.RFC3339)
	}

	var follows, unfollows int
	err = db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'follow'),
			COUNT(*) FILTER (WHERE kind = 'unfollow')
		FROM follow_events
		WHERE account = $1`, account,
	).Scan(&follows, &unfollows)
	if err != nil {
		return nil, fmt.Errorf("failed to get follow event counts: %w", err)
	}
	stats["follows"] = follows
	stats["unfollows"] = unfollows

	var recentUnfollows int
	err = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM follow_events
		WHERE account = $1 AND kind = 'unfollow' AND occurred_at >= NOW() - INTERVAL '7 days'`, account,
	).Scan(&recentUnfollows)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent unfollows: %w", err)
	}
	stats["unfollows_last_7_days"] = recentUnfollows

	return stats, nil
}
