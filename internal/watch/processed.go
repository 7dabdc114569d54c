package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// ProcessedSet is the process-wide dedup set of task ids that have already
// been emitted. It is shared between the watcher's backfill sweep and its
// event loop; every mutation is persisted to the backing file so a restart
// does not re-emit completed recordings.
type ProcessedSet struct {
	mu   sync.Mutex
	ids  map[string]bool
	path string
}

type processedLog struct {
	ProcessedFiles []string  `json:"processed_files"`
	LastUpdated    time.Time `json:"last_updated"`
}

// LoadProcessedSet reads the backing file, tolerating a missing one.
func LoadProcessedSet(path string) (*ProcessedSet, error) {
	ps := &ProcessedSet{ids: make(map[string]bool), path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ps, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read processed log: %w", err)
	}

	var log processedLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse processed log: %w", err)
	}
	for _, id := range log.ProcessedFiles {
		ps.ids[id] = true
	}
	return ps, nil
}

// Seen reports whether the id has already been emitted.
func (ps *ProcessedSet) Seen(id string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.ids[id]
}

// Mark records the id and persists the set. It returns false without
// persisting when the id was already present, so callers get at-most-once
// emission from a single check-and-set.
func (ps *ProcessedSet) Mark(id string) (bool, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ids[id] {
		return false, nil
	}
	ps.ids[id] = true
	if err := ps.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// Len returns the number of recorded ids.
func (ps *ProcessedSet) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.ids)
}

func (ps *ProcessedSet) persistLocked() error {
	ids := make([]string, 0, len(ps.ids))
	for id := range ps.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(processedLog{
		ProcessedFiles: ids,
		LastUpdated:    time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := ps.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, ps.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
