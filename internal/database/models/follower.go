package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

type SnapshotRow struct {
	ID             int64     `json:"id" db:"id"`
	RunID          string    `json:"run_id" db:"run_id"`
	Account        string    `json:"account" db:"account"`
	TakenAt        time.Time `json:"taken_at" db:"taken_at"`
	TotalFollowers int       `json:"total_followers" db:"total_followers"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type FollowEvent struct {
	ID         int64     `json:"id" db:"id"`
	SnapshotID int64     `json:"snapshot_id" db:"snapshot_id"`
	Account    string    `json:"account" db:"account"`
	Username   string    `json:"username" db:"username"`
	Name       string    `json:"name" db:"name"`
	Kind       EventKind `json:"kind" db:"kind"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// EventKind is stored as text and checked on the way in and out.
type EventKind string

const (
	EventFollow   EventKind = "follow"
	EventUnfollow EventKind = "unfollow"
)

func (k EventKind) Valid() bool {
	return k == EventFollow || k == EventUnfollow
}

func (k EventKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid follow event kind %q", string(k))
	}
	return string(k), nil
}

func (k *EventKind) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into EventKind", value)
	}
	kind := EventKind(s)
	if !kind.Valid() {
		return fmt.Errorf("invalid follow event kind %q", s)
	}
	*k = kind
	return nil
}
