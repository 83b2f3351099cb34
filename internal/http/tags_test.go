package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/notekeeper/internal/auth"
	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/database/tags"
	"github.com/mrlokans/notekeeper/internal/entities"
)

func newTagsRouter(repo *tags.Repository, invalidator *cache.Invalidator) *gin.Engine {
	controller := NewTagsController(repo, invalidator, nil)
	router := gin.New()
	router.GET("/api/tags", controller.GetAllTags)
	router.POST("/api/tags", controller.CreateTag)
	router.DELETE("/api/tags/:id", controller.DeleteTag)
	router.GET("/api/tags/suggest", controller.TagSuggest)
	router.GET("/api/tags/:id/notes", controller.GetNotesByTag)
	router.POST("/api/notes/:id/tags", controller.AddTagToNote)
	router.DELETE("/api/notes/:id/tags/:tagId", controller.RemoveTagFromNote)
	router.POST("/api/admin/tags/cleanup", controller.CleanupOrphanTags)
	return router
}

// newTagsRouterAs routes requests as the given authenticated user.
func newTagsRouterAs(repo *tags.Repository, userID uint) *gin.Engine {
	controller := NewTagsController(repo, nil, nil)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, userID)
		c.Next()
	})
	router.DELETE("/api/tags/:id", controller.DeleteTag)
	router.POST("/api/notes/:id/tags", controller.AddTagToNote)
	router.DELETE("/api/notes/:id/tags/:tagId", controller.RemoveTagFromNote)
	return router
}

func TestTagsController_CreateTag(t *testing.T) {
	t.Run("creates a tag", func(t *testing.T) {
		_, tagRepo, cleanup := setupNotesTest(t)
		defer cleanup()

		invalidator := cache.NewInvalidator()
		before := invalidator.Generation(cache.TopicTags)

		router := newTagsRouter(tagRepo, invalidator)
		body := bytes.NewBufferString(`{"name": "research", "color": "#0ea5e9"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/tags", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Greater(t, invalidator.Generation(cache.TopicTags), before)

		var tag entities.Tag
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tag))
		assert.Equal(t, "research", tag.Name)
		assert.Equal(t, "#0ea5e9", tag.Color)
	})

	t.Run("is case-insensitive get-or-create", func(t *testing.T) {
		_, tagRepo, cleanup := setupNotesTest(t)
		defer cleanup()

		_, err := tagRepo.CreateTag("Research", "#0ea5e9", 0)
		require.NoError(t, err)

		router := newTagsRouter(tagRepo, nil)
		body := bytes.NewBufferString(`{"name": "research"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/tags", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		found, err := tagRepo.GetTagsForUser(0)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("requires a name", func(t *testing.T) {
		_, tagRepo, cleanup := setupNotesTest(t)
		defer cleanup()

		router := newTagsRouter(tagRepo, nil)
		body := bytes.NewBufferString(`{}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/tags", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTagsController_GetAllTags(t *testing.T) {
	_, tagRepo, cleanup := setupNotesTest(t)
	defer cleanup()

	for _, name := range []string{"beta", "alpha"} {
		_, err := tagRepo.CreateTag(name, "", 0)
		require.NoError(t, err)
	}

	router := newTagsRouter(tagRepo, cache.NewInvalidator())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/tags", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(CollectionGenerationHeader))

	var found []entities.Tag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 2)
	assert.Equal(t, "alpha", found[0].Name) // sorted by name
}

func TestTagsController_TagSuggest(t *testing.T) {
	_, tagRepo, cleanup := setupNotesTest(t)
	defer cleanup()

	_, err := tagRepo.CreateTag("golang", "", 0)
	require.NoError(t, err)

	router := newTagsRouter(tagRepo, nil)

	t.Run("requires at least two characters", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/tags/suggest?q=g", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("matches partial names", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/tags/suggest?q=gola", nil)
		router.ServeHTTP(w, req)

		var found []entities.Tag
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
		require.Len(t, found, 1)
		assert.Equal(t, "golang", found[0].Name)
	})
}

func TestTagsController_AddTagToNote(t *testing.T) {
	t.Run("attaches by name, creating the tag", func(t *testing.T) {
		noteRepo, tagRepo, cleanup := setupNotesTest(t)
		defer cleanup()

		note, err := noteRepo.CreateNote(&entities.Note{Title: "n", Content: "x"})
		require.NoError(t, err)

		router := newTagsRouter(tagRepo, nil)
		body := bytes.NewBufferString(`{"tag_name": "ideas"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/notes/1/tags", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		tagged, err := noteRepo.GetNoteByID(note.ID)
		require.NoError(t, err)
		require.Len(t, tagged.Tags, 1)
		assert.Equal(t, "ideas", tagged.Tags[0].Name)
	})

	t.Run("requires tag_id or tag_name", func(t *testing.T) {
		_, tagRepo, cleanup := setupNotesTest(t)
		defer cleanup()

		router := newTagsRouter(tagRepo, nil)
		body := bytes.NewBufferString(`{}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/notes/1/tags", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTagsController_RemoveTagFromNote(t *testing.T) {
	noteRepo, tagRepo, cleanup := setupNotesTest(t)
	defer cleanup()

	note, err := noteRepo.CreateNote(&entities.Note{Title: "n", Content: "x"})
	require.NoError(t, err)
	tag, err := tagRepo.CreateTag("stale", "", 0)
	require.NoError(t, err)
	require.NoError(t, tagRepo.AddTagToNote(note.ID, tag.ID, 0))

	router := newTagsRouter(tagRepo, nil)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/notes/1/tags/1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// The tag became an orphan and was cleaned up on detach.
	found, err := tagRepo.GetTagsForUser(0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTagsController_GetNotesByTag(t *testing.T) {
	noteRepo, tagRepo, cleanup := setupNotesTest(t)
	defer cleanup()

	note, err := noteRepo.CreateNote(&entities.Note{Title: "tagged", Content: "x"})
	require.NoError(t, err)
	_, err = noteRepo.CreateNote(&entities.Note{Title: "other", Content: "y"})
	require.NoError(t, err)

	tag, err := tagRepo.CreateTag("filter", "", 0)
	require.NoError(t, err)
	require.NoError(t, tagRepo.AddTagToNote(note.ID, tag.ID, 0))

	router := newTagsRouter(tagRepo, nil)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/tags/1/notes", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Notes []entities.Note `json:"notes"`
		Total int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, 1, response.Total)
	assert.Equal(t, "tagged", response.Notes[0].Title)
}

func TestTagsController_OtherUsersNotesAndTags(t *testing.T) {
	noteRepo, tagRepo, cleanup := setupNotesTest(t)
	defer cleanup()

	note, err := noteRepo.CreateNote(&entities.Note{UserID: 1, Title: "private", Content: "x"})
	require.NoError(t, err)
	tag, err := tagRepo.CreateTag("theirs", "", 1)
	require.NoError(t, err)
	require.NoError(t, tagRepo.AddTagToNote(note.ID, tag.ID, 1))

	stranger := newTagsRouterAs(tagRepo, 2)

	t.Run("cannot tag another user's note", func(t *testing.T) {
		body := bytes.NewBufferString(`{"tag_name": "sneaky"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/notes/1/tags", body)
		req.Header.Set("Content-Type", "application/json")
		stranger.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		tagged, err := noteRepo.GetNoteByID(note.ID)
		require.NoError(t, err)
		assert.Len(t, tagged.Tags, 1)
	})

	t.Run("cannot detach another user's tag", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/notes/1/tags/1", nil)
		stranger.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cannot delete another user's tag", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/tags/1", nil)
		stranger.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		found, err := tagRepo.GetTagsForUser(1)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})
}

func TestTagsController_CleanupOrphanTags_QueueDisabled(t *testing.T) {
	_, tagRepo, cleanup := setupNotesTest(t)
	defer cleanup()

	router := newTagsRouter(tagRepo, nil)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/admin/tags/cleanup", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
