package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followers-monitor/pkg/types"
)

func snapshot(records ...types.FollowerRecord) *types.Snapshot {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return types.NewSnapshot("subject", at, records, "https://x.com")
}

func rec(name, username string) types.FollowerRecord {
	return types.FollowerRecord{Name: name, Username: username}
}

func TestCompareFirstRun(t *testing.T) {
	current := snapshot(rec("User One", "u1"))
	assert.Nil(t, Compare(nil, current))
}

func TestCompareAgainstItself(t *testing.T) {
	a := snapshot(rec("Alice", "alice"), rec("Bob", "bob"), rec("Carol", "carol"))

	d := Compare(a, a)
	require.NotNil(t, d)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Equal(t, 0, d.AddedCount)
	assert.Equal(t, 0, d.RemovedCount)
	assert.True(t, d.Empty())
}

func TestCompareAddedAndRemoved(t *testing.T) {
	previous := snapshot(rec("User One", "u1"), rec("User Two", "u2"))
	current := snapshot(rec("User Two", "u2"), rec("User Three", "u3"))

	d := Compare(previous, current)
	require.NotNil(t, d)

	assert.Equal(t, []types.FollowerRecord{
		{Name: "User One", Username: "u1", ProfileURL: "https://x.com/u1"},
	}, d.Removed)
	assert.Equal(t, []types.FollowerRecord{
		{Name: "User Three", Username: "u3", ProfileURL: "https://x.com/u3"},
	}, d.Added)
	assert.Equal(t, 1, d.RemovedCount)
	assert.Equal(t, 1, d.AddedCount)
	assert.Equal(t, 0, d.NetChange())
}

func TestCompareIgnoresNameChanges(t *testing.T) {
	previous := snapshot(rec("Old Name", "same"), rec("Keep", "keep"))
	current := snapshot(rec("New Name", "same"), rec("Keep", "keep"))

	d := Compare(previous, current)
	require.NotNil(t, d)
	assert.True(t, d.Empty())

	renames := Renamed(previous, current)
	require.Len(t, renames, 1)
	assert.Equal(t, Rename{Username: "same", OldName: "Old Name", NewName: "New Name"}, renames[0])
}

func TestCompareSymmetry(t *testing.T) {
	cases := []struct {
		name string
		a, b *types.Snapshot
	}{
		{"disjoint", snapshot(rec("A", "a")), snapshot(rec("B", "b"))},
		{"overlap", snapshot(rec("A", "a"), rec("B", "b")), snapshot(rec("B", "b"), rec("C", "c"), rec("D", "d"))},
		{"empty previous", snapshot(), snapshot(rec("A", "a"))},
		{"renamed", snapshot(rec("A", "a")), snapshot(rec("Z", "a"), rec("B", "b"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ab := Compare(tc.a, tc.b)
			ba := Compare(tc.b, tc.a)
			assert.Equal(t, ab.Removed, ba.Added)
			assert.Equal(t, ab.Added, ba.Removed)
			assert.Equal(t, ab.RemovedCount, ba.AddedCount)
		})
	}
}

func TestCompareKeepsSnapshotOrder(t *testing.T) {
	previous := snapshot(rec("Keep", "keep"))
	current := snapshot(rec("Zed", "z"), rec("Keep", "keep"), rec("Amy", "amy2"), rec("Amy", "amy1"))

	d := Compare(previous, current)
	require.NotNil(t, d)

	var usernames []string
	for _, f := range d.Added {
		usernames = append(usernames, f.Username)
	}
	assert.Equal(t, []string{"amy1", "amy2", "z"}, usernames)
}

func TestCompareNoUsernameInBothLists(t *testing.T) {
	previous := snapshot(rec("A", "a"), rec("B", "b"), rec("C", "c"))
	current := snapshot(rec("B", "b"), rec("D", "d"))

	d := Compare(previous, current)
	require.NotNil(t, d)

	removed := map[string]bool{}
	for _, f := range d.Removed {
		removed[f.Username] = true
	}
	for _, f := range d.Added {
		assert.False(t, removed[f.Username], "username %s in both lists", f.Username)
	}
	assert.Equal(t, len(d.Added), d.AddedCount)
	assert.Equal(t, len(d.Removed), d.RemovedCount)
}
