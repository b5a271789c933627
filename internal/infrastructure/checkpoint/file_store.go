// Package checkpoint persists cross-run backfill progress as a small
// JSON document.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/ports"
)

// fileState is the on-disk document shape.
type fileState struct {
	CompletedMonths   []string `json:"completed_months"`
	TotalObservations int      `json:"total_observations"`
	LastRun           string   `json:"last_run,omitempty"`
}

// FileStore is a file-backed checkpoint ledger. A run assumes exclusive
// ownership of the file; there is no concurrent-writer protection. An
// unreadable or corrupt file loads as "no progress yet".
type FileStore struct {
	path      string
	epoch     domain.PartitionKey
	logger    *slog.Logger
	completed map[domain.PartitionKey]struct{}
	total     int
	lastRun   time.Time
}

var _ ports.CheckpointStore = (*FileStore)(nil)

// NewFileStore loads (or initializes) the ledger at path. Partitions are
// enumerated from epoch to the current month.
func NewFileStore(path string, epoch domain.PartitionKey, logger *slog.Logger) *FileStore {
	store := &FileStore{
		path:      path,
		epoch:     epoch,
		logger:    logger,
		completed: map[domain.PartitionKey]struct{}{},
	}
	store.load()
	return store
}

func (s *FileStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("checkpoint unreadable, starting fresh", "path", s.path, "error", err)
		}
		return
	}

	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		s.warn("checkpoint corrupt, starting fresh", "path", s.path, "error", err)
		return
	}

	for _, month := range state.CompletedMonths {
		key, err := domain.ParsePartitionKey(month)
		if err != nil {
			s.warn("checkpoint entry dropped", "month", month, "error", err)
			continue
		}
		s.completed[key] = struct{}{}
	}
	s.total = state.TotalObservations
	if state.LastRun != "" {
		if t, err := time.Parse(time.RFC3339, state.LastRun); err == nil {
			s.lastRun = t
		}
	}
}

// NextPending scans the partition sequence most-recent-first and returns
// the first key not yet completed.
func (s *FileStore) NextPending(now time.Time) (domain.PartitionKey, bool) {
	keys := domain.PartitionsBetween(s.epoch, now)
	for i := len(keys) - 1; i >= 0; i-- {
		if _, done := s.completed[keys[i]]; !done {
			return keys[i], true
		}
	}
	return "", false
}

// MarkCompleted records a finished partition; repeating a key is a no-op.
func (s *FileStore) MarkCompleted(key domain.PartitionKey) {
	s.completed[key] = struct{}{}
}

// Reset removes a key from the completed set so the partition can be
// reprocessed. Explicit operator action only.
func (s *FileStore) Reset(key domain.PartitionKey) {
	delete(s.completed, key)
}

// AddIngested accumulates the cross-run record total.
func (s *FileStore) AddIngested(n int) {
	s.total += n
}

// TotalIngested returns the cross-run record total.
func (s *FileStore) TotalIngested() int {
	return s.total
}

// Completed returns the completed keys in chronological order.
func (s *FileStore) Completed() []domain.PartitionKey {
	keys := make([]domain.PartitionKey, 0, len(s.completed))
	for key := range s.completed {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// LastRun reports when the ledger was last saved.
func (s *FileStore) LastRun() time.Time {
	return s.lastRun
}

// Epoch returns the first partition of the backfill.
func (s *FileStore) Epoch() domain.PartitionKey {
	return s.epoch
}

// Save writes the ledger through a temp file and rename so a crash
// mid-write cannot truncate existing progress.
func (s *FileStore) Save() error {
	s.lastRun = time.Now().UTC()

	months := make([]string, 0, len(s.completed))
	for _, key := range s.Completed() {
		months = append(months, string(key))
	}

	raw, err := json.MarshalIndent(fileState{
		CompletedMonths:   months,
		TotalObservations: s.total,
		LastRun:           s.lastRun.Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

func (s *FileStore) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
