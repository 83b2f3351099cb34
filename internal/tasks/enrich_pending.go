package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/notekeeper/internal/entities"
)

// UnenrichedLister lists notes still waiting for a summary.
// Implemented by notes.Repository.
type UnenrichedLister interface {
	GetUnenrichedNotes(limit int) ([]entities.Note, error)
}

// EnrichPendingNotesTask sweeps notes without summaries and enriches
// them sequentially. Failed notes are logged and skipped so one bad
// note cannot stall the sweep.
type EnrichPendingNotesTask struct {
	Limit int `json:"limit,omitempty"`
}

// Config returns the queue configuration for the enrichment sweep.
func (t EnrichPendingNotesTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_pending_notes",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// EnrichPendingNotesProcessor creates a processor function for
// EnrichPendingNotesTask.
func EnrichPendingNotesProcessor(lister UnenrichedLister, enricher NoteEnricher) backlite.QueueProcessor[EnrichPendingNotesTask] {
	return func(ctx context.Context, task EnrichPendingNotesTask) error {
		if lister == nil || enricher == nil {
			return fmt.Errorf("enrichment sweep not configured")
		}

		pending, err := lister.GetUnenrichedNotes(task.Limit)
		if err != nil {
			return fmt.Errorf("list unenriched notes: %w", err)
		}

		var enriched, failed int
		for _, note := range pending {
			if err := enricher.EnrichNote(ctx, note.ID); err != nil {
				log.Printf("[TASK] Sweep: note %d failed: %v", note.ID, err)
				failed++
				continue
			}
			enriched++
		}

		log.Printf("[TASK] Enrichment sweep: %d pending, %d enriched, %d failed",
			len(pending), enriched, failed)
		return nil
	}
}

// NewEnrichPendingNotesQueue creates a backlite queue for enrichment sweeps.
func NewEnrichPendingNotesQueue(lister UnenrichedLister, enricher NoteEnricher) backlite.Queue {
	return backlite.NewQueue(EnrichPendingNotesProcessor(lister, enricher))
}
