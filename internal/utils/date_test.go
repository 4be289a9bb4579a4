package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStamp(t *testing.T) {
	at := time.Date(2025, 3, 1, 14, 5, 9, 0, time.FixedZone("EET", 2*3600))
	stamp := HistoryStamp(at)
	assert.Equal(t, "20250301_120509", stamp)

	parsed, err := ParseHistoryStamp(stamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestIsOlderThan(t *testing.T) {
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	assert.True(t, IsOlderThan(now.Add(-26*time.Hour), 25*time.Hour, now))
	assert.False(t, IsOlderThan(now.Add(-24*time.Hour), 25*time.Hour, now))
}
