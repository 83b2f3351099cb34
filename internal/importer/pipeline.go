package importer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/entities"
	"github.com/mrlokans/notekeeper/internal/extract"
)

// ErrSessionExpired aborts a running batch. Files not yet processed
// stay pending.
var ErrSessionExpired = errors.New("session expired")

// SessionChecker reports whether the importing user's session is still
// valid. Checked before every file so a long batch cannot outlive its
// session.
type SessionChecker func(ctx context.Context) bool

type ctxKey int

const skipSessionCheckKey ctxKey = iota

// SkipSessionCheck marks a context as exempt from session re-checks.
// Used for batches authenticated by other means (API tokens, CLI runs)
// where there is no session that could expire.
func SkipSessionCheck(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipSessionCheckKey, true)
}

func sessionCheckExempt(ctx context.Context) bool {
	exempt, _ := ctx.Value(skipSessionCheckKey).(bool)
	return exempt
}

// TextExtractor converts file bytes to plain text. Implemented by
// extract.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// BatchStore persists import batch records. Implemented by
// notes.Repository.
type BatchStore interface {
	CreateBatch(batch *entities.ImportBatch) error
	UpdateBatch(batch *entities.ImportBatch) error
}

// CacheInvalidator is notified after a batch mutates notes and tags.
type CacheInvalidator interface {
	Invalidate(topic string)
}

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	FileID  string    `json:"file_id"`
	Name    string    `json:"name"`
	State   FileState `json:"state"`
	Message string    `json:"message,omitempty"`
	NoteID  uint      `json:"note_id,omitempty"`
}

// BatchResult is the outcome of a whole import run.
type BatchResult struct {
	BatchID      string       `json:"batch_id"`
	Files        []FileResult `json:"files"`
	NotesCreated int          `json:"notes_created"`
}

// Pipeline imports queued files sequentially: extract, materialize,
// enrich. Files fail individually; only session loss aborts the batch.
type Pipeline struct {
	extractor    TextExtractor
	materializer *Materializer
	batches      BatchStore
	tracker      *StatusTracker
	cache        CacheInvalidator
	checkSession SessionChecker
}

// NewPipeline creates an import pipeline. The session checker and cache
// invalidator may be nil.
func NewPipeline(
	extractor TextExtractor,
	materializer *Materializer,
	batches BatchStore,
	tracker *StatusTracker,
	invalidator CacheInvalidator,
	checkSession SessionChecker,
) *Pipeline {
	return &Pipeline{
		extractor:    extractor,
		materializer: materializer,
		batches:      batches,
		tracker:      tracker,
		cache:        invalidator,
		checkSession: checkSession,
	}
}

// Tracker exposes the status tracker for HTTP polling.
func (p *Pipeline) Tracker() *StatusTracker {
	return p.tracker
}

// Run imports the given files one by one and records the batch. It
// returns ErrSessionExpired when the session is lost mid-batch; all
// other failures are captured per file and the batch keeps going.
func (p *Pipeline) Run(ctx context.Context, userID uint, files []QueuedFile) (*BatchResult, error) {
	batchID := uuid.NewString()
	log.Printf("[IMPORT] starting batch %s: %d file(s) for user %d", batchID, len(files), userID)

	// Statuses from an earlier aborted batch are kept around for polling
	// until the next batch starts.
	p.tracker.Clear()

	results := make([]FileResult, len(files))
	for i, file := range files {
		results[i] = FileResult{FileID: file.ID, Name: file.Name, State: StatePending}
		p.tracker.Set(FileStatus{FileID: file.ID, Name: file.Name, State: StatePending})
	}

	batch := &entities.ImportBatch{
		BatchID:     batchID,
		UserID:      userID,
		Status:      entities.BatchStatusRunning,
		FilesQueued: len(files),
		StartedAt:   time.Now(),
	}
	if err := p.batches.CreateBatch(batch); err != nil {
		log.Printf("[IMPORT] failed to record batch %s: %v", batchID, err)
	}

	var runErr error
	for i, file := range files {
		if p.checkSession != nil && !sessionCheckExempt(ctx) && !p.checkSession(ctx) {
			log.Printf("[IMPORT] batch %s aborted: session expired with %d file(s) pending", batchID, len(files)-i)
			runErr = ErrSessionExpired
			break
		}

		results[i] = p.processFile(ctx, userID, batchID, file)
		p.tracker.Set(FileStatus{
			FileID:  file.ID,
			Name:    file.Name,
			State:   results[i].State,
			Message: results[i].Message,
		})
	}

	result := &BatchResult{BatchID: batchID, Files: results}
	p.finishBatch(batch, result, runErr)

	if p.cache != nil {
		p.cache.Invalidate(cache.TopicNotes)
		p.cache.Invalidate(cache.TopicTags)
	}
	if runErr == nil {
		p.tracker.Clear()
	}

	log.Printf("[IMPORT] batch %s finished: %d note(s) created, %d file(s) failed",
		batchID, batch.NotesCreated, batch.FilesFailed)
	return result, runErr
}

// processFile runs one file through extraction and materialization.
func (p *Pipeline) processFile(ctx context.Context, userID uint, batchID string, file QueuedFile) FileResult {
	result := FileResult{FileID: file.ID, Name: file.Name}
	p.tracker.Set(FileStatus{FileID: file.ID, Name: file.Name, State: StateProcessing})

	content, err := p.extractor.Extract(ctx, file.Name, file.Data)
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		result.State = StateError
		result.Message = "unsupported file type"
		return result
	case errors.Is(err, extract.ErrEmptyContent):
		// Nothing to import, but not a failure.
		result.State = StateCompleted
		result.Message = "no content extracted"
		return result
	case err != nil:
		log.Printf("[IMPORT] extraction failed for %q: %v", file.Name, err)
		result.State = StateError
		result.Message = err.Error()
		return result
	}

	note, err := p.materializer.Materialize(ctx, userID, batchID, file, content)
	switch {
	case errors.Is(err, ErrEnrichmentFailed):
		// The file failed, but the note stays persisted without a summary;
		// the enrichment sweep retries it.
		log.Printf("[IMPORT] %v for %q, keeping note %d", err, file.Name, note.ID)
		result.State = StateError
		result.Message = err.Error()
		result.NoteID = note.ID
		return result
	case err != nil:
		result.State = StateError
		result.Message = err.Error()
		return result
	}

	result.State = StateCompleted
	result.NoteID = note.ID
	return result
}

// finishBatch tallies per-file outcomes onto the batch record and saves it.
func (p *Pipeline) finishBatch(batch *entities.ImportBatch, result *BatchResult, runErr error) {
	type fileError struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	var failures []fileError

	for _, fr := range result.Files {
		// A note may exist even for a failed file (enrichment errors).
		if fr.NoteID != 0 {
			batch.NotesCreated++
		}
		switch fr.State {
		case StateCompleted:
			batch.FilesCompleted++
			if fr.NoteID == 0 {
				batch.FilesSkipped++
			}
		case StateError:
			batch.FilesFailed++
			failures = append(failures, fileError{Name: fr.Name, Message: fr.Message})
		}
	}
	result.NotesCreated = batch.NotesCreated

	if len(failures) > 0 {
		if encoded, err := json.Marshal(failures); err == nil {
			batch.Errors = string(encoded)
		}
	}

	batch.Status = entities.BatchStatusCompleted
	if runErr != nil {
		batch.Status = entities.BatchStatusFailed
	}
	now := time.Now()
	batch.CompletedAt = &now

	if err := p.batches.UpdateBatch(batch); err != nil {
		log.Printf("[IMPORT] failed to update batch %s: %v", batch.BatchID, err)
	}
}
