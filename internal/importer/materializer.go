package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/notekeeper/internal/entities"
	"github.com/mrlokans/notekeeper/internal/extract"
)

var (
	// ErrNoteCreationFailed means the note could not be persisted.
	ErrNoteCreationFailed = errors.New("note creation failed")

	// ErrEnrichmentFailed means the note was persisted but the AI pass
	// failed. The note is kept without a summary; the scheduler sweep
	// picks it up later.
	ErrEnrichmentFailed = errors.New("enrichment failed")
)

// NoteCreator persists new notes. Implemented by notes.Repository.
type NoteCreator interface {
	CreateNote(note *entities.Note) (*entities.Note, error)
}

// Enricher applies AI summary and tags to a persisted note.
// Implemented by ai.Enricher.
type Enricher interface {
	EnrichNote(ctx context.Context, noteID uint) error
}

// Materializer turns extracted text into persisted, enriched notes.
type Materializer struct {
	notes    NoteCreator
	enricher Enricher
}

// NewMaterializer creates a Materializer. The enricher may be nil, in
// which case notes are saved without summaries.
func NewMaterializer(notes NoteCreator, enricher Enricher) *Materializer {
	return &Materializer{notes: notes, enricher: enricher}
}

// Materialize persists a note for the given file content and runs
// enrichment on it synchronously. When enrichment fails the persisted
// note is returned alongside ErrEnrichmentFailed.
func (m *Materializer) Materialize(ctx context.Context, userID uint, batchID string, file QueuedFile, content string) (*entities.Note, error) {
	note := &entities.Note{
		UserID:     userID,
		Title:      extract.TitleFromFilename(file.Name),
		Content:    content,
		Status:     entities.NoteStatusActive,
		SourceFile: file.Name,
		BatchID:    batchID,
	}

	created, err := m.notes.CreateNote(note)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoteCreationFailed, err)
	}
	if created.ID == 0 {
		return nil, fmt.Errorf("%w: no id assigned", ErrNoteCreationFailed)
	}

	if m.enricher == nil {
		return created, nil
	}

	if err := m.enricher.EnrichNote(ctx, created.ID); err != nil {
		return created, fmt.Errorf("%w: %v", ErrEnrichmentFailed, err)
	}

	return created, nil
}
