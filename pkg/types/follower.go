package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FollowerRecord is one account following the monitored subject.
// Username is the natural key; Name is display-only.
type FollowerRecord struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
}

func (f FollowerRecord) String() string {
	return fmt.Sprintf("%s (@%s)", f.Name, f.Username)
}

// Snapshot is the full follower set of one account at one point in time.
type Snapshot struct {
	Username       string           `json:"username"`
	Timestamp      Timestamp        `json:"timestamp"`
	TotalFollowers int              `json:"total_followers"`
	Followers      []FollowerRecord `json:"followers"`
}

// NewSnapshot builds a snapshot from an unordered record set. Records are
// sorted by (name, username) and missing profile URLs are derived from
// profileBase.
func NewSnapshot(subject string, at time.Time, records []FollowerRecord, profileBase string) *Snapshot {
	followers := make([]FollowerRecord, 0, len(records))
	for _, r := range records {
		if r.ProfileURL == "" && profileBase != "" {
			r.ProfileURL = ProfileURL(profileBase, r.Username)
		}
		followers = append(followers, r)
	}
	SortFollowers(followers)

	return &Snapshot{
		Username:       subject,
		Timestamp:      NewTimestamp(at),
		TotalFollowers: len(followers),
		Followers:      followers,
	}
}

// ProfileURL joins a site base URL and a username.
func ProfileURL(base, username string) string {
	return strings.TrimRight(base, "/") + "/" + username
}

// SortFollowers orders records by display name, then username.
func SortFollowers(followers []FollowerRecord) {
	sort.SliceStable(followers, func(i, j int) bool {
		if followers[i].Name != followers[j].Name {
			return followers[i].Name < followers[j].Name
		}
		return followers[i].Username < followers[j].Username
	})
}

// Usernames returns the set of usernames in the snapshot.
func (s *Snapshot) Usernames() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Followers))
	for _, f := range s.Followers {
		set[f.Username] = struct{}{}
	}
	return set
}

// Validate checks the count and uniqueness invariants.
func (s *Snapshot) Validate() error {
	if s.TotalFollowers != len(s.Followers) {
		return fmt.Errorf("total_followers is %d but %d followers are listed", s.TotalFollowers, len(s.Followers))
	}
	seen := make(map[string]struct{}, len(s.Followers))
	for _, f := range s.Followers {
		if _, dup := seen[f.Username]; dup {
			return fmt.Errorf("duplicate username %q", f.Username)
		}
		seen[f.Username] = struct{}{}
	}
	return nil
}

// Diff is the key-based change set between two snapshots.
type Diff struct {
	Added        []FollowerRecord `json:"added"`
	Removed      []FollowerRecord `json:"removed"`
	AddedCount   int              `json:"added_count"`
	RemovedCount int              `json:"removed_count"`
}

func (d *Diff) NetChange() int {
	return d.AddedCount - d.RemovedCount
}

func (d *Diff) Empty() bool {
	return d == nil || (d.AddedCount == 0 && d.RemovedCount == 0)
}

func (d Diff) String() string {
	return fmt.Sprintf("Added: %d, Removed: %d, Net: %+d", d.AddedCount, d.RemovedCount, d.NetChange())
}
