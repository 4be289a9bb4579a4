// Package diff compares follower snapshots by username.
package diff

import "followers-monitor/pkg/types"

// Compare returns the followers added and removed between previous and
// current. It returns nil when there is no previous snapshot to compare
// against. Only usernames are compared, so a changed display name is not an
// event. Each list keeps the stored order of the snapshot it was taken from.
func Compare(previous, current *types.Snapshot) *types.Diff {
	if previous == nil || current == nil {
		return nil
	}

	prevUsernames := previous.Usernames()
	currUsernames := current.Usernames()

	removed := missingFrom(previous.Followers, currUsernames)
	added := missingFrom(current.Followers, prevUsernames)

	return &types.Diff{
		Added:        added,
		Removed:      removed,
		AddedCount:   len(added),
		RemovedCount: len(removed),
	}
}

// Rename is a username whose display name changed between snapshots.
type Rename struct {
	Username string `json:"username"`
	OldName  string `json:"old_name"`
	NewName  string `json:"new_name"`
}

// Renamed lists followers present in both snapshots under a different
// display name, in the current snapshot's order.
func Renamed(previous, current *types.Snapshot) []Rename {
	if previous == nil || current == nil {
		return nil
	}

	oldNames := make(map[string]string, len(previous.Followers))
	for _, f := range previous.Followers {
		oldNames[f.Username] = f.Name
	}

	var renames []Rename
	for _, f := range current.Followers {
		if old, ok := oldNames[f.Username]; ok && old != f.Name {
			renames = append(renames, Rename{Username: f.Username, OldName: old, NewName: f.Name})
		}
	}
	return renames
}

func missingFrom(followers []types.FollowerRecord, other map[string]struct{}) []types.FollowerRecord {
	result := []types.FollowerRecord{}
	for _, f := range followers {
		if _, ok := other[f.Username]; !ok {
			result = append(result, f)
		}
	}
	return result
}
