package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/notekeeper/internal/auth"
	"github.com/mrlokans/notekeeper/internal/config"
	"github.com/mrlokans/notekeeper/internal/entities"
	"github.com/mrlokans/notekeeper/internal/importer"
)

// BatchLister provides read access to past import batches.
type BatchLister interface {
	GetBatchesForUser(userID uint) ([]entities.ImportBatch, error)
}

// ImportController handles document upload and import.
type ImportController struct {
	pipeline *importer.Pipeline
	batches  BatchLister
	cfg      config.Import
}

func NewImportController(pipeline *importer.Pipeline, batches BatchLister, cfg config.Import) *ImportController {
	return &ImportController{pipeline: pipeline, batches: batches, cfg: cfg}
}

// ImportResponse is the outcome of a synchronous import run.
type ImportResponse struct {
	Status       string                `json:"status"`
	BatchID      string                `json:"batch_id"`
	NotesCreated int                   `json:"notes_created"`
	Files        []importer.FileResult `json:"files"`
}

// Import accepts a multipart upload and runs the import pipeline on it
// synchronously. Files are processed in upload order; a per-file failure
// does not stop the batch.
// POST /api/import (multipart, field "files")
func (ic *ImportController) Import(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "invalid multipart form")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		respondBadRequest(c, "no files provided")
		return
	}
	if ic.cfg.MaxBatchFiles > 0 && len(headers) > ic.cfg.MaxBatchFiles {
		respondBadRequest(c, fmt.Sprintf("too many files: %d exceeds the batch limit of %d", len(headers), ic.cfg.MaxBatchFiles))
		return
	}

	queued := make([]importer.QueuedFile, 0, len(headers))
	for _, header := range headers {
		if ic.cfg.MaxFileSizeBytes > 0 && header.Size > ic.cfg.MaxFileSizeBytes {
			respondError(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file %q exceeds the size limit of %d bytes", header.Filename, ic.cfg.MaxFileSizeBytes))
			return
		}

		file, err := header.Open()
		if err != nil {
			respondInternalError(c, err, "open uploaded file")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			respondInternalError(c, err, "read uploaded file")
			return
		}

		queued = append(queued, importer.NewQueuedFile(header.Filename, data))
	}

	// Session loss only applies to session-authenticated requests; token
	// and no-auth batches have nothing that could expire mid-run.
	ctx := c.Request.Context()
	if auth.GetAuthType(c) != auth.AuthTypeSession {
		ctx = importer.SkipSessionCheck(ctx)
	}

	result, err := ic.pipeline.Run(ctx, GetUserID(c), queued)
	if errors.Is(err, importer.ErrSessionExpired) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":    "session expired, import aborted",
			"batch_id": result.BatchID,
			"files":    result.Files,
		})
		return
	}
	if err != nil {
		respondInternalError(c, err, "run import")
		return
	}

	status := "completed"
	for _, fr := range result.Files {
		if fr.State == importer.StateError {
			status = "completed with errors"
			break
		}
	}

	c.JSON(http.StatusOK, ImportResponse{
		Status:       status,
		BatchID:      result.BatchID,
		NotesCreated: result.NotesCreated,
		Files:        result.Files,
	})
}

// ImportStatus returns the per-file states of the batch currently running.
// Empty between batches: the tracker is cleared when a batch finishes.
// GET /api/import/status
func (ic *ImportController) ImportStatus(c *gin.Context) {
	statuses := ic.pipeline.Tracker().Snapshot()
	c.JSON(http.StatusOK, gin.H{"files": statuses, "total": len(statuses)})
}

// ListBatches returns the user's past import batches, newest first.
// GET /api/import/batches
func (ic *ImportController) ListBatches(c *gin.Context) {
	batches, err := ic.batches.GetBatchesForUser(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "list import batches")
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches, "total": len(batches)})
}
