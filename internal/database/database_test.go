package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followers-monitor/internal/config"
	"followers-monitor/internal/database/models"
	"followers-monitor/pkg/types"
)

func TestConnectionString(t *testing.T) {
	cfg := config.Default().Database
	assert.Equal(t, "host=localhost port=5432 user=postgres dbname=followers sslmode=disable", ConnectionString(cfg))

	cfg.Password = `it's a secret\`
	assert.Equal(t,
		`host=localhost port=5432 user=postgres password='it\'s a secret\\' dbname=followers sslmode=disable`,
		ConnectionString(cfg))
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := Migrations()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/001_create_snapshots.sql",
		"migrations/002_create_follow_events.sql",
	}, files)
}

func TestFollowEvents(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	diff := &types.Diff{
		Added:        []types.FollowerRecord{{Name: "New", Username: "new"}},
		Removed:      []types.FollowerRecord{{Name: "Gone", Username: "gone"}},
		AddedCount:   1,
		RemovedCount: 1,
	}

	events := FollowEvents(7, "subject", at, diff)
	require.Len(t, events, 2)
	assert.Equal(t, models.FollowEvent{
		SnapshotID: 7, Account: "subject", Username: "gone", Name: "Gone",
		Kind: models.EventUnfollow, OccurredAt: at,
	}, events[0])
	assert.Equal(t, models.EventFollow, events[1].Kind)

	assert.Nil(t, FollowEvents(7, "subject", at, nil))
}

func TestEventKind(t *testing.T) {
	v, err := models.EventFollow.Value()
	require.NoError(t, err)
	assert.Equal(t, "follow", v)

	_, err = models.EventKind("like").Value()
	assert.Error(t, err)

	var k models.EventKind
	require.NoError(t, k.Scan([]byte("unfollow")))
	assert.Equal(t, models.EventUnfollow, k)
	assert.Error(t, k.Scan("like"))
	assert.Error(t, k.Scan(42))
}
