package storage

import (
	"context"
	"time"

	"followers-monitor/internal/scraper"
	"followers-monitor/pkg/types"
)

// Checkpointer saves interim snapshots of subject's followers while a
// collection is still running. now stamps each checkpoint.
func (s *Store) Checkpointer(subject, profileBase string, now func() time.Time) scraper.Checkpointer {
	return func(ctx context.Context, followers []types.FollowerRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := types.NewSnapshot(subject, now(), followers, profileBase)
		_, err := s.SaveCheckpoint(snap)
		return err
	}
}
