package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harrison/agentd/internal/filelock"
	"github.com/harrison/agentd/internal/models"
)

// snapshotDocument is the on-disk queue state format.
type snapshotDocument struct {
	SavedAt time.Time          `json:"saved_at"`
	Items   []models.QueueItem `json:"items"`
}

// SaveSnapshot persists the queue's current state to path atomically,
// guarded by a file lock so concurrent processes never interleave writes.
func (q *Queue) SaveSnapshot(path string) error {
	doc := snapshotDocument{
		SavedAt: time.Now().UTC(),
		Items:   q.Snapshot(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue snapshot: %w", err)
	}

	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("write queue snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A missing file
// yields an empty item list, not an error: a fresh process simply starts
// with an empty queue.
func LoadSnapshot(path string) ([]models.QueueItem, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue snapshot: %w", err)
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode queue snapshot: %w", err)
	}
	return doc.Items, nil
}
