package entities

import (
	"time"

	"gorm.io/gorm"
)

type NoteStatus string

const (
	NoteStatusActive   NoteStatus = "active"
	NoteStatusArchived NoteStatus = "archived"
)

type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Note is a user document: imported or hand-written text plus the
// AI-generated summary and keyword tags attached during enrichment.
type Note struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"index" json:"user_id"`
	Title   string `gorm:"index;size:512" json:"title"`
	Content string `gorm:"type:text" json:"content"`

	// Enrichment output. Empty until the AI pass has run.
	Summary    string     `gorm:"type:text" json:"summary,omitempty"`
	EnrichedAt *time.Time `json:"enriched_at,omitempty"`

	Status     NoteStatus `gorm:"size:20;default:'active'" json:"status"`
	IsFavorite bool       `gorm:"default:false" json:"is_favorite"`
	IsArchived bool       `gorm:"default:false" json:"is_archived"`

	// Source tracking for imported notes.
	SourceFile string `gorm:"size:1024" json:"source_file,omitempty"`
	BatchID    string `gorm:"index;size:36" json:"batch_id,omitempty"`

	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`

	User User  `gorm:"foreignKey:UserID" json:"-"`
	Tags []Tag `gorm:"many2many:note_tags;" json:"tags,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Tag is a named, coloured label attachable to notes.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Name      string    `gorm:"index;size:100" json:"name"`
	Color     string    `gorm:"size:10" json:"color,omitempty"` // Hex color code
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Notes     []Note    `gorm:"many2many:note_tags;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportBatch records one user-initiated import operation.
type ImportBatch struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	BatchID        string      `gorm:"uniqueIndex;size:36" json:"batch_id"`
	UserID         uint        `gorm:"index" json:"user_id"`
	Status         BatchStatus `gorm:"size:20;default:'pending'" json:"status"`
	FilesQueued    int         `json:"files_queued"`
	FilesCompleted int         `json:"files_completed"`
	FilesFailed    int         `json:"files_failed"`
	FilesSkipped   int         `json:"files_skipped"`
	NotesCreated   int         `json:"notes_created"`
	Errors         string      `gorm:"type:text" json:"errors,omitempty"` // JSON array of per-file errors
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	User           User        `gorm:"foreignKey:UserID" json:"-"`
}

func (Note) TableName() string {
	return "notes"
}

func (Tag) TableName() string {
	return "tags"
}

func (ImportBatch) TableName() string {
	return "import_batches"
}
