package scraper

import (
	"strings"

	"followers-monitor/pkg/types"
)

// CleanRecord trims an extracted name/handle pair and strips the leading @.
// It reports false for pairs that are not a follower row: an empty field or a
// "name" that is really a handle.
func CleanRecord(name, handle string) (types.FollowerRecord, bool) {
	name = strings.TrimSpace(name)
	username := strings.TrimPrefix(strings.TrimSpace(handle), "@")

	if name == "" || username == "" {
		return types.FollowerRecord{}, false
	}
	if strings.Contains(name, "@") {
		return types.FollowerRecord{}, false
	}
	if strings.ContainsAny(username, " \t\n") {
		return types.FollowerRecord{}, false
	}

	return types.FollowerRecord{Name: name, Username: username}, true
}

// FollowerSet accumulates records keyed by exact username. A later sighting
// of a username replaces its display name.
type FollowerSet struct {
	records map[string]types.FollowerRecord
}

func NewFollowerSet() *FollowerSet {
	return &FollowerSet{records: make(map[string]types.FollowerRecord)}
}

// Merge adds records and returns how many usernames were new.
func (fs *FollowerSet) Merge(records []types.FollowerRecord) int {
	added := 0
	for _, r := range records {
		if _, exists := fs.records[r.Username]; !exists {
			added++
		}
		fs.records[r.Username] = r
	}
	return added
}

func (fs *FollowerSet) Len() int {
	return len(fs.records)
}

// Records returns the accumulated followers sorted by (name, username).
func (fs *FollowerSet) Records() []types.FollowerRecord {
	out := make([]types.FollowerRecord, 0, len(fs.records))
	for _, r := range fs.records {
		out = append(out, r)
	}
	types.SortFollowers(out)
	return out
}
