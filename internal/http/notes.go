package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/database/notes"
	"github.com/mrlokans/notekeeper/internal/entities"
	"github.com/mrlokans/notekeeper/internal/tasks"
)

// CollectionGenerationHeader carries the cache generation token for
// collection responses. Clients compare tokens between polls to decide
// whether a cached listing is stale.
const CollectionGenerationHeader = "X-Collection-Generation"

// NoteStore defines database operations for note management. Every
// single-note operation is scoped to the owning user.
type NoteStore interface {
	GetNoteForUser(id, userID uint) (*entities.Note, error)
	GetNotesForUser(userID uint, opts notes.ListOptions) ([]entities.Note, error)
	GetFavouriteNotes(userID uint) ([]entities.Note, error)
	GetRecentlyViewedNotes(userID uint, limit int) ([]entities.Note, error)
	ToggleFavourite(id, userID uint, currentIsFavourite bool) (bool, error)
	SetArchived(id, userID uint, isArchived bool) error
	DeleteNote(id, userID uint) error
}

type NotesController struct {
	store       NoteStore
	invalidator *cache.Invalidator
	taskClient  *tasks.Client
}

func NewNotesController(store NoteStore, invalidator *cache.Invalidator, taskClient *tasks.Client) *NotesController {
	return &NotesController{store: store, invalidator: invalidator, taskClient: taskClient}
}

// setGeneration attaches the collection generation token for a cache topic.
func (nc *NotesController) setGeneration(c *gin.Context, topic string) {
	if nc.invalidator == nil {
		return
	}
	c.Header(CollectionGenerationHeader, strconv.FormatUint(nc.invalidator.Generation(topic), 10))
}

// ListNotes returns the user's notes, optionally filtered and sorted.
// GET /api/notes?q=term&tag=3&sort=title
func (nc *NotesController) ListNotes(c *gin.Context) {
	opts := notes.ListOptions{
		Search: c.Query("q"),
		Sort:   notes.SortKey(c.Query("sort")),
	}

	if tagStr := c.Query("tag"); tagStr != "" {
		tagID, err := strconv.ParseUint(tagStr, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid tag")
			return
		}
		opts.TagID = uint(tagID)
	}

	found, err := nc.store.GetNotesForUser(GetUserID(c), opts)
	if err != nil {
		respondInternalError(c, err, "list notes")
		return
	}

	nc.setGeneration(c, cache.TopicNotes)
	c.JSON(http.StatusOK, gin.H{"notes": found, "total": len(found)})
}

// RecentNotes returns the most recently viewed notes.
// GET /api/notes/recent?limit=10
func (nc *NotesController) RecentNotes(c *gin.Context) {
	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	found, err := nc.store.GetRecentlyViewedNotes(GetUserID(c), limit)
	if err != nil {
		respondInternalError(c, err, "recent notes")
		return
	}

	nc.setGeneration(c, cache.TopicNotes)
	c.JSON(http.StatusOK, gin.H{"notes": found, "total": len(found)})
}

// FavouriteNotes returns the user's favourite notes.
// GET /api/notes/favourites
func (nc *NotesController) FavouriteNotes(c *gin.Context) {
	found, err := nc.store.GetFavouriteNotes(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "favourite notes")
		return
	}

	nc.setGeneration(c, cache.TopicNotes)
	c.JSON(http.StatusOK, gin.H{"notes": found, "total": len(found)})
}

// GetNote returns a single note and records the view.
// GET /api/notes/:id
func (nc *NotesController) GetNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	note, err := nc.store.GetNoteForUser(id, GetUserID(c))
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			respondNotFound(c, "note")
			return
		}
		respondInternalError(c, err, "get note")
		return
	}

	c.JSON(http.StatusOK, note)
}

// DeleteNote soft-deletes a note.
// DELETE /api/notes/:id
func (nc *NotesController) DeleteNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := nc.store.DeleteNote(id, GetUserID(c)); err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			respondNotFound(c, "note")
			return
		}
		respondInternalError(c, err, "delete note")
		return
	}

	if nc.invalidator != nil {
		nc.invalidator.Invalidate(cache.TopicNotes)
	}
	respondSuccess(c, "note deleted")
}

type toggleFavouriteRequest struct {
	// The favourite value as the client currently displays it. The server
	// flips relative to this, so a stale client view produces the flip the
	// user actually saw and asked for.
	IsFavorite *bool `json:"is_favorite"`
}

// ToggleFavourite flips the favourite flag relative to the client's view.
// POST /api/notes/:id/favourite
func (nc *NotesController) ToggleFavourite(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req toggleFavouriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsFavorite == nil {
		respondBadRequest(c, "is_favorite is required")
		return
	}

	next, err := nc.store.ToggleFavourite(id, GetUserID(c), *req.IsFavorite)
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			respondNotFound(c, "note")
			return
		}
		respondInternalError(c, err, "toggle favourite")
		return
	}

	if nc.invalidator != nil {
		nc.invalidator.Invalidate(cache.TopicNotes)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_favorite": next})
}

type archiveRequest struct {
	Archived *bool `json:"archived"` // defaults to true when omitted
}

// ArchiveNote sets or clears the archived flag.
// POST /api/notes/:id/archive
func (nc *NotesController) ArchiveNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	archived := true
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Archived != nil {
		archived = *req.Archived
	}

	if err := nc.store.SetArchived(id, GetUserID(c), archived); err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			respondNotFound(c, "note")
			return
		}
		respondInternalError(c, err, "archive note")
		return
	}

	if nc.invalidator != nil {
		nc.invalidator.Invalidate(cache.TopicNotes)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_archived": archived})
}

// EnrichNote enqueues a background enrichment task for a note.
// Requires the task queue to be enabled.
// POST /api/notes/:id/enrich
func (nc *NotesController) EnrichNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if nc.taskClient == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is not enabled")
		return
	}

	if _, err := nc.store.GetNoteForUser(id, GetUserID(c)); err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			respondNotFound(c, "note")
			return
		}
		respondInternalError(c, err, "get note")
		return
	}

	task := tasks.EnrichNoteTask{NoteID: id}
	ids, err := nc.taskClient.Add(task).Save()
	if err != nil {
		log.Printf("Failed to enqueue enrichment task for note %d: %v", id, err)
		respondInternalError(c, err, "enqueue enrichment task")
		return
	}
	log.Printf("Enqueued EnrichNoteTask for note %d with ID: %s", id, ids[0])

	respondAccepted(c, "enrichment task started", gin.H{"task_id": ids[0]})
}
