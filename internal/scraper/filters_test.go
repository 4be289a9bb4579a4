package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"followers-monitor/pkg/types"
)

func TestCleanRecord(t *testing.T) {
	tests := []struct {
		name   string
		inName string
		handle string
		want   types.FollowerRecord
		ok     bool
	}{
		{"plain", "Alice", "@alice", types.FollowerRecord{Name: "Alice", Username: "alice"}, true},
		{"whitespace", "  Alice ", " @alice ", types.FollowerRecord{Name: "Alice", Username: "alice"}, true},
		{"handle without at", "Alice", "alice", types.FollowerRecord{Name: "Alice", Username: "alice"}, true},
		{"empty name", "", "@alice", types.FollowerRecord{}, false},
		{"empty handle", "Alice", "@", types.FollowerRecord{}, false},
		{"name is a handle", "@alice", "@alice", types.FollowerRecord{}, false},
		{"handle with space", "Alice", "@al ice", types.FollowerRecord{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CleanRecord(tt.inName, tt.handle)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFollowerSetMerge(t *testing.T) {
	set := NewFollowerSet()

	assert.Equal(t, 2, set.Merge([]types.FollowerRecord{
		{Name: "Zed", Username: "z"},
		{Name: "Amy", Username: "a"},
	}))
	assert.Equal(t, 0, set.Merge([]types.FollowerRecord{{Name: "Zed", Username: "z"}}))
	// a renamed follower is not new, but the latest name wins
	assert.Equal(t, 0, set.Merge([]types.FollowerRecord{{Name: "Amy B", Username: "a"}}))
	assert.Equal(t, 1, set.Merge([]types.FollowerRecord{{Name: "Amy", Username: "A"}}))

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []types.FollowerRecord{
		{Name: "Amy", Username: "A"},
		{Name: "Amy B", Username: "a"},
		{Name: "Zed", Username: "z"},
	}, set.Records())
}

func TestFollowerSetMergeDuplicatesInBatch(t *testing.T) {
	set := NewFollowerSet()
	added := set.Merge([]types.FollowerRecord{
		{Name: "One", Username: "u"},
		{Name: "Two", Username: "u"},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, "Two", set.Records()[0].Name)
}

func TestFollowerSetEmpty(t *testing.T) {
	set := NewFollowerSet()
	assert.Equal(t, 0, set.Len())
	assert.NotNil(t, set.Records())
	assert.Empty(t, set.Records())
}
