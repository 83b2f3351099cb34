package ai

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/mrlokans/notekeeper/internal/entities"
)

// NoteStore defines the note operations the enricher needs.
type NoteStore interface {
	GetNoteByID(id uint) (*entities.Note, error)
	SetEnrichment(id uint, summary string) error
}

// TagStore defines the tag operations the enricher needs.
type TagStore interface {
	GetOrCreateTag(name, color string, userID uint) (*entities.Tag, error)
	AddTagToNote(noteID, tagID, userID uint) error
}

// TagsUpdateCallback is invoked after enrichment creates or attaches
// tags, so cached tag collections can be invalidated.
type TagsUpdateCallback func()

// tagPalette provides deterministic colours for AI-created tags.
var tagPalette = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e",
	"#14b8a6", "#0ea5e9", "#6366f1", "#a855f7",
}

// Enricher applies AI-generated summaries and keyword tags to notes.
type Enricher struct {
	client     Client
	notes      NoteStore
	tags       TagStore
	onTagsUpdt TagsUpdateCallback
}

// NewEnricher creates an Enricher with the given AI client and stores.
func NewEnricher(client Client, notes NoteStore, tags TagStore) *Enricher {
	return &Enricher{
		client: client,
		notes:  notes,
		tags:   tags,
	}
}

// RegisterTagsUpdateCallback sets the callback fired when enrichment
// touches tags (optional).
func (e *Enricher) RegisterTagsUpdateCallback(cb TagsUpdateCallback) {
	e.onTagsUpdt = cb
}

// EnrichNote fetches a note, asks the AI client for a summary and
// keywords, and persists the results. Keywords become tags attached to
// the note (created on first use).
func (e *Enricher) EnrichNote(ctx context.Context, noteID uint) error {
	note, err := e.notes.GetNoteByID(noteID)
	if err != nil {
		return fmt.Errorf("get note: %w", err)
	}

	enrichment, err := e.client.Enrich(ctx, note.Title, note.Content)
	if err != nil {
		return fmt.Errorf("enrich note %d: %w", noteID, err)
	}

	if err := e.notes.SetEnrichment(noteID, enrichment.Summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	tagsTouched := false
	for _, keyword := range enrichment.Keywords {
		tag, err := e.tags.GetOrCreateTag(keyword, colorFor(keyword), note.UserID)
		if err != nil {
			return fmt.Errorf("create tag %q: %w", keyword, err)
		}
		if err := e.tags.AddTagToNote(noteID, tag.ID, note.UserID); err != nil {
			return fmt.Errorf("attach tag %q: %w", keyword, err)
		}
		tagsTouched = true
	}

	if tagsTouched && e.onTagsUpdt != nil {
		e.onTagsUpdt()
	}

	return nil
}

// colorFor picks a stable palette colour for a tag name.
func colorFor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return tagPalette[h.Sum32()%uint32(len(tagPalette))]
}
