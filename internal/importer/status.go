package importer

import (
	"sync"
)

// FileState is the lifecycle state of a single queued file.
type FileState string

const (
	StatePending    FileState = "pending"
	StateProcessing FileState = "processing"
	StateCompleted  FileState = "completed"
	StateError      FileState = "error"
)

// FileStatus is the tracked state of one queued file.
type FileStatus struct {
	FileID  string    `json:"file_id"`
	Name    string    `json:"name"`
	State   FileState `json:"state"`
	Message string    `json:"message,omitempty"`
}

// StatusTracker holds per-file import status keyed by file ID. It is
// safe for concurrent use: HTTP status polling reads while the pipeline
// writes. Transition ordering is the pipeline's responsibility, not the
// tracker's.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]FileStatus
	order    []string
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		statuses: make(map[string]FileStatus),
	}
}

// Set records the status for a file, preserving first-seen order.
func (t *StatusTracker) Set(status FileStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.statuses[status.FileID]; !seen {
		t.order = append(t.order, status.FileID)
	}
	t.statuses[status.FileID] = status
}

// Get returns the status for a file ID.
func (t *StatusTracker) Get(fileID string) (FileStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.statuses[fileID]
	return status, ok
}

// Remove drops a single file's status.
func (t *StatusTracker) Remove(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.statuses[fileID]; !ok {
		return
	}
	delete(t.statuses, fileID)
	for i, id := range t.order {
		if id == fileID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Clear drops all statuses.
func (t *StatusTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses = make(map[string]FileStatus)
	t.order = nil
}

// Snapshot returns all statuses in first-seen order.
func (t *StatusTracker) Snapshot() []FileStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make([]FileStatus, 0, len(t.order))
	for _, id := range t.order {
		snapshot = append(snapshot, t.statuses[id])
	}
	return snapshot
}
