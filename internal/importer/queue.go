// Package importer runs the document import pipeline: queued uploads are
// extracted to plain text, materialized as notes and enriched, with
// per-file status visible to HTTP clients while a batch is running.
package importer

import (
	"github.com/google/uuid"
)

// QueuedFile is one uploaded document awaiting import. The ID is
// generated at enqueue time so two uploads with the same file name
// never share status entries.
type QueuedFile struct {
	ID   string
	Name string
	Data []byte
}

// NewQueuedFile wraps uploaded bytes with a fresh file ID.
func NewQueuedFile(name string, data []byte) QueuedFile {
	return QueuedFile{
		ID:   uuid.NewString(),
		Name: name,
		Data: data,
	}
}
