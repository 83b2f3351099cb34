package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// NoteEnricher runs the AI enrichment pass on a single note.
// Implemented by ai.Enricher.
type NoteEnricher interface {
	EnrichNote(ctx context.Context, noteID uint) error
}

// EnrichNoteTask generates the summary and keyword tags for one note.
// Enqueued for notes the synchronous import-time enrichment missed, and
// by the POST /api/notes/:id/enrich endpoint.
type EnrichNoteTask struct {
	NoteID uint `json:"note_id"`
}

// Config returns the queue configuration for note enrichment tasks.
func (t EnrichNoteTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_note",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// EnrichNoteProcessor creates a processor function for EnrichNoteTask.
func EnrichNoteProcessor(enricher NoteEnricher) backlite.QueueProcessor[EnrichNoteTask] {
	return func(ctx context.Context, task EnrichNoteTask) error {
		if enricher == nil {
			return fmt.Errorf("enricher not configured")
		}

		if err := enricher.EnrichNote(ctx, task.NoteID); err != nil {
			return fmt.Errorf("enrich note %d: %w", task.NoteID, err)
		}

		log.Printf("[TASK] Enriched note %d", task.NoteID)
		return nil
	}
}

// NewEnrichNoteQueue creates a backlite queue for note enrichment tasks.
func NewEnrichNoteQueue(enricher NoteEnricher) backlite.Queue {
	return backlite.NewQueue(EnrichNoteProcessor(enricher))
}
