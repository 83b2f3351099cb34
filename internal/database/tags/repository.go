// Package tags provides database operations for tag management.
//
// This package implements the TagStore interface defined in internal/http/tags.go.
//
// # Usage
//
//	repo := tags.NewRepository(db)
//	tag, err := repo.GetOrCreateTag("research", "#0ea5e9", userID)
package tags

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/notekeeper/internal/entities"
)

// ErrNotFound means the note or tag does not exist or belongs to
// another user.
var ErrNotFound = errors.New("note or tag not found")

// Repository handles all tag database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new tags repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTag creates a new tag.
func (r *Repository) CreateTag(name, color string, userID uint) (*entities.Tag, error) {
	tag := &entities.Tag{
		Name:   name,
		Color:  color,
		UserID: userID,
	}
	if err := r.db.Create(tag).Error; err != nil {
		return nil, err
	}
	return tag, nil
}

// GetOrCreateTag retrieves or creates a tag (case-insensitive).
// Color is only applied when the tag is created.
func (r *Repository) GetOrCreateTag(name, color string, userID uint) (*entities.Tag, error) {
	var tag entities.Tag
	err := r.db.Where("LOWER(name) = LOWER(?) AND user_id = ?", name, userID).First(&tag).Error
	if err == gorm.ErrRecordNotFound {
		return r.CreateTag(name, color, userID)
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetTagsForUser retrieves all tags for a user.
func (r *Repository) GetTagsForUser(userID uint) ([]entities.Tag, error) {
	var found []entities.Tag
	err := r.db.Where("user_id = ?", userID).Order("LOWER(name) ASC").Find(&found).Error
	return found, err
}

// SearchTags searches tags by name (case-insensitive partial match).
func (r *Repository) SearchTags(query string, userID uint) ([]entities.Tag, error) {
	var found []entities.Tag
	searchPattern := "%" + query + "%"
	err := r.db.Where("user_id = ? AND LOWER(name) LIKE LOWER(?)", userID, searchPattern).Find(&found).Error
	return found, err
}

// DeleteTag deletes one of the user's tags.
func (r *Repository) DeleteTag(id, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&entities.Tag{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsTagOrphan checks if a tag has no associated notes.
func (r *Repository) IsTagOrphan(tagID uint) (bool, error) {
	var noteCount int64
	if err := r.db.Table("note_tags").Where("tag_id = ?", tagID).Count(&noteCount).Error; err != nil {
		return false, err
	}
	return noteCount == 0, nil
}

// DeleteTagIfOrphan deletes a tag if it has no associations.
func (r *Repository) DeleteTagIfOrphan(tagID uint) error {
	orphan, err := r.IsTagOrphan(tagID)
	if err != nil {
		return err
	}
	if orphan {
		return r.db.Delete(&entities.Tag{}, tagID).Error
	}
	return nil
}

// DeleteOrphanTags removes all orphan tags.
func (r *Repository) DeleteOrphanTags() (int64, error) {
	result := r.db.Exec(`
		DELETE FROM tags
		WHERE id NOT IN (SELECT tag_id FROM note_tags)
	`)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// noteAndTagForUser loads a note/tag pair, both scoped to the owner.
func (r *Repository) noteAndTagForUser(noteID, tagID, userID uint) (*entities.Note, *entities.Tag, error) {
	var note entities.Note
	if err := r.db.Where("id = ? AND user_id = ?", noteID, userID).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	var tag entities.Tag
	if err := r.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return &note, &tag, nil
}

// AddTagToNote associates a tag with one of the user's notes.
func (r *Repository) AddTagToNote(noteID, tagID, userID uint) error {
	note, tag, err := r.noteAndTagForUser(noteID, tagID, userID)
	if err != nil {
		return err
	}
	return r.db.Model(note).Association("Tags").Append(tag)
}

// RemoveTagFromNote removes a tag from one of the user's notes.
func (r *Repository) RemoveTagFromNote(noteID, tagID, userID uint) error {
	note, tag, err := r.noteAndTagForUser(noteID, tagID, userID)
	if err != nil {
		return err
	}
	if err := r.db.Model(note).Association("Tags").Delete(tag); err != nil {
		return err
	}
	return r.DeleteTagIfOrphan(tagID)
}

// GetNotesByTag retrieves notes that carry a specific tag.
func (r *Repository) GetNotesByTag(tagID uint, userID uint) ([]entities.Note, error) {
	var tag entities.Tag
	if err := r.db.First(&tag, tagID).Error; err != nil {
		return nil, err
	}

	var found []entities.Note
	query := r.db.Preload("Tags").
		Where("notes.id IN (SELECT note_id FROM note_tags WHERE tag_id = ?)", tagID)

	if userID > 0 {
		query = query.Where("notes.user_id = ?", userID)
	}

	err := query.Find(&found).Error
	return found, err
}
