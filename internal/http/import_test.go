package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/notekeeper/internal/auth"
	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/config"
	"github.com/mrlokans/notekeeper/internal/database/notes"
	"github.com/mrlokans/notekeeper/internal/entities"
	"github.com/mrlokans/notekeeper/internal/extract"
	"github.com/mrlokans/notekeeper/internal/importer"
)

type uploadFile struct {
	name    string
	content string
}

func newImportRouter(repo *notes.Repository, cfg config.Import, checkSession importer.SessionChecker) (*gin.Engine, *cache.Invalidator) {
	invalidator := cache.NewInvalidator()
	pipeline := importer.NewPipeline(
		extract.New(nil),
		importer.NewMaterializer(repo, nil),
		repo,
		importer.NewStatusTracker(),
		invalidator,
		checkSession,
	)
	controller := NewImportController(pipeline, repo, cfg)

	router := gin.New()
	if checkSession != nil {
		// Session re-checks only apply to session-authenticated requests.
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeSession)
			c.Next()
		})
	}
	router.POST("/api/import", controller.Import)
	router.GET("/api/import/status", controller.ImportStatus)
	router.GET("/api/import/batches", controller.ListBatches)
	return router, invalidator
}

func newUploadRequest(t *testing.T, files []uploadFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest("POST", "/api/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestImportController_Import(t *testing.T) {
	t.Run("imports a clean batch", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, _ := newImportRouter(repo, config.Import{}, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{
			{"first.txt", "plain text body"},
			{"second.md", "# heading\n\nmarkdown body"},
		}))

		assert.Equal(t, http.StatusOK, w.Code)

		var response ImportResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "completed", response.Status)
		assert.Equal(t, 2, response.NotesCreated)
		assert.NotEmpty(t, response.BatchID)
		require.Len(t, response.Files, 2)
		assert.Equal(t, "first.txt", response.Files[0].Name)
		assert.Equal(t, importer.StateCompleted, response.Files[0].State)

		created, err := repo.GetNotesForUser(0, notes.ListOptions{})
		require.NoError(t, err)
		require.Len(t, created, 2)
	})

	t.Run("bad files do not stop the batch", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, _ := newImportRouter(repo, config.Import{}, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{
			{"good.txt", "usable content"},
			{"spreadsheet.xlsx", "not importable"},
			{"blank.txt", "   \n\t  "},
			{"trailing.md", "still imported"},
		}))

		assert.Equal(t, http.StatusOK, w.Code)

		var response ImportResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "completed with errors", response.Status)
		assert.Equal(t, 2, response.NotesCreated)
		require.Len(t, response.Files, 4)

		assert.Equal(t, importer.StateCompleted, response.Files[0].State)
		assert.Equal(t, importer.StateError, response.Files[1].State)
		assert.Equal(t, "unsupported file type", response.Files[1].Message)
		assert.Equal(t, importer.StateCompleted, response.Files[2].State)
		assert.Equal(t, "no content extracted", response.Files[2].Message)
		assert.Zero(t, response.Files[2].NoteID)
		assert.Equal(t, importer.StateCompleted, response.Files[3].State)

		// Only the two usable files became notes.
		created, err := repo.GetNotesForUser(0, notes.ListOptions{})
		require.NoError(t, err)
		require.Len(t, created, 2)
	})

	t.Run("records the batch audit row", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, invalidator := newImportRouter(repo, config.Import{}, nil)
		before := invalidator.Generation(cache.TopicNotes)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{
			{"good.txt", "usable content"},
			{"nope.xlsx", "unsupported"},
		}))
		require.Equal(t, http.StatusOK, w.Code)

		batches, err := repo.GetBatchesForUser(0)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Equal(t, entities.BatchStatusCompleted, batches[0].Status)
		assert.Equal(t, 2, batches[0].FilesQueued)
		assert.Equal(t, 1, batches[0].FilesCompleted)
		assert.Equal(t, 1, batches[0].FilesFailed)
		assert.Equal(t, 1, batches[0].NotesCreated)
		assert.Contains(t, batches[0].Errors, "nope.xlsx")
		assert.NotNil(t, batches[0].CompletedAt)

		// Both collection topics were invalidated.
		assert.Greater(t, invalidator.Generation(cache.TopicNotes), before)
		assert.Greater(t, invalidator.Generation(cache.TopicTags), uint64(0))
	})

	t.Run("clears per-file statuses after the batch", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, _ := newImportRouter(repo, config.Import{}, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{{"a.txt", "content"}}))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/import/status", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":0`)
	})

	t.Run("aborts when the session is lost", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		expired := func(ctx context.Context) bool { return false }
		router, _ := newImportRouter(repo, config.Import{}, expired)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{
			{"a.txt", "content"},
			{"b.txt", "content"},
		}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var response struct {
			Files []importer.FileResult `json:"files"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Files, 2)
		for _, fr := range response.Files {
			assert.Equal(t, importer.StatePending, fr.State)
		}

		// No notes were materialized.
		created, err := repo.GetNotesForUser(0, notes.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, created)

		batches, err := repo.GetBatchesForUser(0)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Equal(t, entities.BatchStatusFailed, batches[0].Status)

		// The aborted batch's statuses stay pollable.
		w = httptest.NewRecorder()
		statusReq, _ := http.NewRequest("GET", "/api/import/status", nil)
		router.ServeHTTP(w, statusReq)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":2`)
	})

	t.Run("rejects an empty upload", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, _ := newImportRouter(repo, config.Import{}, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("enforces the batch size limit", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, _ := newImportRouter(repo, config.Import{MaxBatchFiles: 2}, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{
			{"a.txt", "x"}, {"b.txt", "y"}, {"c.txt", "z"},
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "too many files")
	})

	t.Run("enforces the per-file size limit", func(t *testing.T) {
		repo, _, cleanup := setupNotesTest(t)
		defer cleanup()

		router, _ := newImportRouter(repo, config.Import{MaxFileSizeBytes: 8}, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, []uploadFile{
			{"big.txt", "well over eight bytes of text"},
		}))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestImportController_ListBatches(t *testing.T) {
	repo, _, cleanup := setupNotesTest(t)
	defer cleanup()

	router, _ := newImportRouter(repo, config.Import{}, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, newUploadRequest(t, []uploadFile{{"a.txt", "content"}}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/import/batches", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Batches []entities.ImportBatch `json:"batches"`
		Total   int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, 1, response.Total)
	assert.Equal(t, entities.BatchStatusCompleted, response.Batches[0].Status)
	assert.Equal(t, 1, response.Batches[0].NotesCreated)
}
