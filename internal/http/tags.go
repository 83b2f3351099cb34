package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/database/tags"
	"github.com/mrlokans/notekeeper/internal/entities"
	"github.com/mrlokans/notekeeper/internal/tasks"
)

// TagStore defines database operations for tag management. Tag and
// note lookups are scoped to the owning user.
type TagStore interface {
	CreateTag(name, color string, userID uint) (*entities.Tag, error)
	GetOrCreateTag(name, color string, userID uint) (*entities.Tag, error)
	GetTagsForUser(userID uint) ([]entities.Tag, error)
	SearchTags(query string, userID uint) ([]entities.Tag, error)
	DeleteTag(id, userID uint) error
	AddTagToNote(noteID, tagID, userID uint) error
	RemoveTagFromNote(noteID, tagID, userID uint) error
	GetNotesByTag(tagID uint, userID uint) ([]entities.Note, error)
}

type TagsController struct {
	store       TagStore
	invalidator *cache.Invalidator
	taskClient  *tasks.Client
}

func NewTagsController(store TagStore, invalidator *cache.Invalidator, taskClient *tasks.Client) *TagsController {
	return &TagsController{store: store, invalidator: invalidator, taskClient: taskClient}
}

func (tc *TagsController) invalidateTags() {
	if tc.invalidator != nil {
		tc.invalidator.Invalidate(cache.TopicTags)
	}
}

// GetAllTags returns all tags for the current user.
// GET /api/tags
func (tc *TagsController) GetAllTags(c *gin.Context) {
	found, err := tc.store.GetTagsForUser(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "get all tags")
		return
	}

	if tc.invalidator != nil {
		c.Header(CollectionGenerationHeader, strconv.FormatUint(tc.invalidator.Generation(cache.TopicTags), 10))
	}
	c.JSON(http.StatusOK, found)
}

// CreateTag creates a new tag.
// POST /api/tags
func (tc *TagsController) CreateTag(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	tag, err := tc.store.GetOrCreateTag(req.Name, req.Color, GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "create tag")
		return
	}

	tc.invalidateTags()
	respondCreated(c, tag)
}

// DeleteTag removes a tag.
// DELETE /api/tags/:id
func (tc *TagsController) DeleteTag(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := tc.store.DeleteTag(id, GetUserID(c)); err != nil {
		if errors.Is(err, tags.ErrNotFound) {
			respondNotFound(c, "tag")
			return
		}
		respondInternalError(c, err, "delete tag")
		return
	}

	tc.invalidateTags()
	respondSuccess(c, "tag deleted")
}

// TagSuggest returns tag suggestions for autocomplete.
// GET /api/tags/suggest?q=query
func (tc *TagsController) TagSuggest(c *gin.Context) {
	query := c.Query("q")

	// Require minimum 2 characters for autocomplete
	if len(query) < 2 {
		c.JSON(http.StatusOK, []entities.Tag{})
		return
	}

	found, err := tc.store.SearchTags(query, GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "search tags")
		return
	}

	c.JSON(http.StatusOK, found)
}

// GetNotesByTag returns all notes carrying a specific tag.
// GET /api/tags/:id/notes
func (tc *TagsController) GetNotesByTag(c *gin.Context) {
	tagID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	found, err := tc.store.GetNotesByTag(tagID, GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "get notes by tag")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": found, "total": len(found)})
}

// AddTagToNote attaches a tag to a note, creating the tag if a name is given.
// POST /api/notes/:id/tags
func (tc *TagsController) AddTagToNote(c *gin.Context) {
	noteID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		TagID   uint   `json:"tag_id"`
		TagName string `json:"tag_name"`
		Color   string `json:"color"`
	}
	_ = c.ShouldBindJSON(&req)

	var tagID uint
	if req.TagID > 0 {
		tagID = req.TagID
	} else if req.TagName != "" {
		tag, err := tc.store.GetOrCreateTag(req.TagName, req.Color, GetUserID(c))
		if err != nil {
			respondInternalError(c, err, "get or create tag")
			return
		}
		tagID = tag.ID
	} else {
		respondBadRequest(c, "tag_id or tag_name required")
		return
	}

	if err := tc.store.AddTagToNote(noteID, tagID, GetUserID(c)); err != nil {
		if errors.Is(err, tags.ErrNotFound) {
			respondNotFound(c, "note or tag")
			return
		}
		respondInternalError(c, err, "add tag to note")
		return
	}

	tc.invalidateTags()
	c.JSON(http.StatusOK, gin.H{"message": "tag added", "tag_id": tagID})
}

// RemoveTagFromNote detaches a tag from a note.
// DELETE /api/notes/:id/tags/:tagId
func (tc *TagsController) RemoveTagFromNote(c *gin.Context) {
	noteID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	tagID, ok := parseIDParam(c, "tagId")
	if !ok {
		return
	}

	if err := tc.store.RemoveTagFromNote(noteID, tagID, GetUserID(c)); err != nil {
		if errors.Is(err, tags.ErrNotFound) {
			respondNotFound(c, "note or tag")
			return
		}
		respondInternalError(c, err, "remove tag from note")
		return
	}

	tc.invalidateTags()
	respondSuccess(c, "tag removed")
}

// CleanupOrphanTags enqueues removal of tags no note carries any more.
// Requires the task queue to be enabled.
// POST /api/admin/tags/cleanup
func (tc *TagsController) CleanupOrphanTags(c *gin.Context) {
	if tc.taskClient == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is not enabled")
		return
	}

	task := tasks.CleanupOrphanTagsTask{}
	ids, err := tc.taskClient.Add(task).Save()
	if err != nil {
		log.Printf("Failed to enqueue cleanup task: %v", err)
		respondInternalError(c, err, "enqueue cleanup task")
		return
	}
	log.Printf("Enqueued CleanupOrphanTagsTask with ID: %s", ids[0])

	respondAccepted(c, "cleanup task started", gin.H{"task_id": ids[0]})
}
