package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// BatchCleaner provides the ability to delete old import batch records.
type BatchCleaner interface {
	DeleteOldBatches(retention time.Duration) (int64, error)
}

// CleanupOldBatchesTask removes import batch records older than the
// configured retention period.
type CleanupOldBatchesTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for batch cleanup tasks.
func (t CleanupOldBatchesTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_old_batches",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupOldBatchesProcessor creates a processor function for CleanupOldBatchesTask.
func CleanupOldBatchesProcessor(cleaner BatchCleaner) backlite.QueueProcessor[CleanupOldBatchesTask] {
	return func(ctx context.Context, task CleanupOldBatchesTask) error {
		if cleaner == nil {
			return fmt.Errorf("batch cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 90
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		deleted, err := cleaner.DeleteOldBatches(retention)
		if err != nil {
			return fmt.Errorf("cleanup import batches: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d import batches older than %d days", deleted, retentionDays)
		return nil
	}
}

// NewCleanupOldBatchesQueue creates a backlite queue for batch cleanup tasks.
func NewCleanupOldBatchesQueue(cleaner BatchCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupOldBatchesProcessor(cleaner))
}
