// Package storage persists follower snapshots as JSON files: a current output
// file, a "latest" pointer used as the next run's baseline, and an
// append-only history of timestamped copies.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/internal/utils"
	"followers-monitor/pkg/types"
)

const (
	latestFileName = "latest.json"
	historyPrefix  = "followers_"
	historySuffix  = ".json"
	checkpointTag  = "_checkpoint"
)

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// HistoryEntry is one timestamped snapshot file.
type HistoryEntry struct {
	Path       string    `json:"path"`
	TakenAt    time.Time `json:"taken_at"`
	Checkpoint bool      `json:"checkpoint"`
}

type Store struct {
	outputFile string
	historyDir string
	logger     *logrus.Logger
}

func NewStore(cfg config.StorageConfig, logger *logrus.Logger) (*Store, error) {
	if cfg.HistoryDir == "" {
		return nil, fmt.Errorf("storage.history_dir is required")
	}
	if err := os.MkdirAll(cfg.HistoryDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	logger.Debugf("Ensured %s directory exists", cfg.HistoryDir)

	return &Store{
		outputFile: cfg.OutputFile,
		historyDir: cfg.HistoryDir,
		logger:     logger,
	}, nil
}

func (s *Store) LatestPath() string {
	return filepath.Join(s.historyDir, latestFileName)
}

// Save writes snap to a new history file, then replaces the output file and
// the latest pointer. History files are never overwritten.
func (s *Store) Save(snap *types.Snapshot) (string, error) {
	return s.save(snap, false)
}

// SaveCheckpoint is Save for an interim snapshot of a run still in progress.
// Its history file is tagged so Previous never treats it as a completed run.
func (s *Store) SaveCheckpoint(snap *types.Snapshot) (string, error) {
	return s.save(snap, true)
}

func (s *Store) save(snap *types.Snapshot, checkpoint bool) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", fmt.Errorf("refusing to save snapshot: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	s.logger.Infof("Saving progress for %d followers", snap.TotalFollowers)

	backupFile, err := s.writeHistory(snap.Timestamp.Time, data, checkpoint)
	if err != nil {
		return "", err
	}

	if s.outputFile != "" {
		if err := writeFileAtomic(s.outputFile, data); err != nil {
			return backupFile, fmt.Errorf("failed to write output file: %w", err)
		}
	}
	if err := writeFileAtomic(s.LatestPath(), data); err != nil {
		return backupFile, fmt.Errorf("failed to write latest snapshot: %w", err)
	}

	s.logger.Infof("Data saved to %s and %s", s.LatestPath(), backupFile)
	return backupFile, nil
}

// Latest returns the baseline snapshot, or nil when none exists yet.
func (s *Store) Latest() (*types.Snapshot, error) {
	snap, err := s.Load(s.LatestPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return snap, err
}

// Load reads and validates one snapshot file.
func (s *Store) Load(path string) (*types.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, path, err)
	}
	return &snap, nil
}

// History lists the timestamped snapshot files, oldest first.
func (s *Store) History() ([]HistoryEntry, error) {
	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var history []HistoryEntry
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, historyPrefix) || !strings.HasSuffix(name, historySuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, historyPrefix), historySuffix)
		takenAt, err := utils.ParseHistoryStamp(stamp[:min(len(stamp), len(utils.HistoryStampLayout))])
		if err != nil {
			s.logger.Debugf("Skipping unrecognized history file %s", name)
			continue
		}
		history = append(history, HistoryEntry{
			Path:       filepath.Join(s.historyDir, name),
			TakenAt:    takenAt,
			Checkpoint: strings.HasSuffix(stamp, checkpointTag),
		})
	}

	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].TakenAt.Equal(history[j].TakenAt) {
			return history[i].TakenAt.Before(history[j].TakenAt)
		}
		return history[i].Path < history[j].Path
	})
	return history, nil
}

// Previous returns the newest completed snapshot taken before the latest one,
// or nil when there is none. Checkpoints are skipped.
func (s *Store) Previous() (*types.Snapshot, error) {
	latest, err := s.Latest()
	if err != nil || latest == nil {
		return nil, err
	}

	history, err := s.History()
	if err != nil {
		return nil, err
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Checkpoint {
			continue
		}
		snap, err := s.Load(history[i].Path)
		if err != nil {
			s.logger.Warnf("Skipping unreadable history file %s: %v", history[i].Path, err)
			continue
		}
		if snap.Timestamp.Before(latest.Timestamp.Time) {
			return snap, nil
		}
	}
	return nil, nil
}

// writeHistory creates a new history file for data, adding a numeric suffix
// when a file for the same second already exists.
func (s *Store) writeHistory(takenAt time.Time, data []byte, checkpoint bool) (string, error) {
	stamp := utils.HistoryStamp(takenAt)
	tag := ""
	if checkpoint {
		tag = checkpointTag
	}
	for attempt := 0; attempt < 1000; attempt++ {
		name := historyPrefix + stamp + tag + historySuffix
		if attempt > 0 {
			name = fmt.Sprintf("%s%s_%d%s%s", historyPrefix, stamp, attempt, tag, historySuffix)
		}
		path := filepath.Join(s.historyDir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create history file: %w", err)
		}

		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write history file: %w", err)
		}
		if err := file.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to close history file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many history files for %s", stamp)
}

// writeFileAtomic replaces path only after data is fully on disk.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
