// Package notes provides database operations for note management.
//
// This package implements the NoteStore interface defined in internal/http/notes.go.
package notes

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/notekeeper/internal/entities"
)

var ErrNoteNotFound = errors.New("note not found")

// SortKey selects the ordering of note listings.
type SortKey string

const (
	SortByCreated SortKey = "created"
	SortByUpdated SortKey = "updated"
	SortByTitle   SortKey = "title"
)

// ListOptions narrows and orders a note listing.
type ListOptions struct {
	Search string  // Case-insensitive substring match on title, content and summary
	TagID  uint    // Only notes carrying this tag (0 = all)
	Sort   SortKey // Defaults to SortByCreated (newest first)
}

// Repository handles all note database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new notes repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateNote persists a new note and returns it with its assigned ID.
func (r *Repository) CreateNote(note *entities.Note) (*entities.Note, error) {
	if err := r.db.Create(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

// GetNoteByID retrieves a note with its tags regardless of owner. For
// system use (enrichment tasks); user-facing reads go through
// GetNoteForUser.
func (r *Repository) GetNoteByID(id uint) (*entities.Note, error) {
	var note entities.Note
	err := r.db.Preload("Tags").First(&note, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &note, nil
}

// GetNoteForUser retrieves one of the user's notes with its tags and
// records the view time. Other users' notes come back as not found.
func (r *Repository) GetNoteForUser(id, userID uint) (*entities.Note, error) {
	var note entities.Note
	err := r.db.Preload("Tags").
		Where("id = ? AND user_id = ?", id, userID).
		First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	now := time.Now()
	if err := r.db.Model(&note).UpdateColumn("last_viewed_at", now).Error; err != nil {
		return nil, err
	}
	note.LastViewedAt = &now

	return &note, nil
}

// GetNotesForUser lists a user's non-archived notes per the given options.
func (r *Repository) GetNotesForUser(userID uint, opts ListOptions) ([]entities.Note, error) {
	query := r.db.Preload("Tags").
		Where("user_id = ? AND is_archived = ?", userID, false)

	if opts.Search != "" {
		pattern := "%" + strings.TrimSpace(opts.Search) + "%"
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(content) LIKE LOWER(?) OR LOWER(summary) LIKE LOWER(?)",
			pattern, pattern, pattern,
		)
	}

	if opts.TagID > 0 {
		query = query.Where(
			"notes.id IN (SELECT note_id FROM note_tags WHERE tag_id = ?)", opts.TagID)
	}

	switch opts.Sort {
	case SortByTitle:
		query = query.Order("LOWER(title) ASC")
	case SortByUpdated:
		query = query.Order("updated_at DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var found []entities.Note
	err := query.Find(&found).Error
	return found, err
}

// SearchNotes is GetNotesForUser restricted to a search term.
func (r *Repository) SearchNotes(term string, userID uint) ([]entities.Note, error) {
	return r.GetNotesForUser(userID, ListOptions{Search: term})
}

// GetFavouriteNotes lists a user's favourite notes, newest first.
func (r *Repository) GetFavouriteNotes(userID uint) ([]entities.Note, error) {
	var found []entities.Note
	err := r.db.Preload("Tags").
		Where("user_id = ? AND is_favorite = ? AND is_archived = ?", userID, true, false).
		Order("created_at DESC").
		Find(&found).Error
	return found, err
}

// GetRecentlyViewedNotes lists the most recently opened notes.
func (r *Repository) GetRecentlyViewedNotes(userID uint, limit int) ([]entities.Note, error) {
	if limit <= 0 {
		limit = 10
	}
	var found []entities.Note
	err := r.db.Preload("Tags").
		Where("user_id = ? AND last_viewed_at IS NOT NULL", userID).
		Order("last_viewed_at DESC").
		Limit(limit).
		Find(&found).Error
	return found, err
}

// SetFavourite sets the favourite flag to an explicit value.
func (r *Repository) SetFavourite(id, userID uint, isFavourite bool) error {
	result := r.db.Model(&entities.Note{}).Where("id = ? AND user_id = ?", id, userID).
		Update("is_favorite", isFavourite)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// ToggleFavourite flips the favourite flag relative to the caller's view
// of the current value. The caller applies its speculative flip first and
// reverts when this returns an error (compensating-action pattern).
func (r *Repository) ToggleFavourite(id, userID uint, currentIsFavourite bool) (bool, error) {
	next := !currentIsFavourite
	if err := r.SetFavourite(id, userID, next); err != nil {
		return currentIsFavourite, err
	}
	return next, nil
}

// SetArchived sets the archived flag.
func (r *Repository) SetArchived(id, userID uint, isArchived bool) error {
	updates := map[string]any{"is_archived": isArchived}
	if isArchived {
		updates["status"] = entities.NoteStatusArchived
	} else {
		updates["status"] = entities.NoteStatusActive
	}
	result := r.db.Model(&entities.Note{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// SetEnrichment stores the AI-generated summary on a note.
func (r *Repository) SetEnrichment(id uint, summary string) error {
	now := time.Now()
	result := r.db.Model(&entities.Note{}).Where("id = ?", id).Updates(map[string]any{
		"summary":     summary,
		"enriched_at": now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// GetUnenrichedNotes lists notes that have content but no summary yet.
func (r *Repository) GetUnenrichedNotes(limit int) ([]entities.Note, error) {
	if limit <= 0 {
		limit = 50
	}
	var found []entities.Note
	err := r.db.
		Where("enriched_at IS NULL AND content != ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&found).Error
	return found, err
}

// DeleteNote soft-deletes one of the user's notes.
func (r *Repository) DeleteNote(id, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&entities.Note{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// CreateBatch persists a new import batch record.
func (r *Repository) CreateBatch(batch *entities.ImportBatch) error {
	return r.db.Create(batch).Error
}

// UpdateBatch saves an import batch record.
func (r *Repository) UpdateBatch(batch *entities.ImportBatch) error {
	return r.db.Save(batch).Error
}

// DeleteOldBatches removes batch records whose run started before the
// retention window. Notes created by those batches are untouched.
func (r *Repository) DeleteOldBatches(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.db.Where("started_at < ?", cutoff).Delete(&entities.ImportBatch{})
	return result.RowsAffected, result.Error
}

// GetBatchesForUser lists a user's import batches, newest first.
func (r *Repository) GetBatchesForUser(userID uint) ([]entities.ImportBatch, error) {
	var batches []entities.ImportBatch
	err := r.db.Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&batches).Error
	return batches, err
}
