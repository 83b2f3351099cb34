// Package extract converts uploaded document bytes into plain text.
//
// Supported formats:
//   - .txt/.md            — verbatim UTF-8 text
//   - .pdf                — page text extraction (pdfcpu)
//   - .docx               — raw text from word/document.xml (.doc is
//     accepted only when it is a docx archive under the wrong extension)
//   - .png/.jpg/.jpeg/
//     .bmp/.gif           — OCR via an external vision service
package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType marks files outside the supported extension set.
	// Distinct from extraction failure: the file is skipped, not failed.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyContent means extraction succeeded but produced no usable text.
	ErrEmptyContent = errors.New("no content extracted")

	// ErrExtractionFailed wraps decoding/parsing errors.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Kind classifies a file by its extension.
type Kind string

const (
	KindText  Kind = "text"
	KindPDF   Kind = "pdf"
	KindWord  Kind = "word"
	KindImage Kind = "image"
)

var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
}

// DetectKind returns the document kind based on the file extension
// (case-insensitive). Returns ErrUnsupportedType for anything outside
// the supported set.
func DetectKind(filename string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return KindText, nil
	case ".pdf":
		return KindPDF, nil
	case ".doc", ".docx":
		return KindWord, nil
	case ".png", ".jpg", ".jpeg", ".bmp", ".gif":
		return KindImage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

// OCRClient extracts text from an image. Implemented by ocr.GeminiClient.
type OCRClient interface {
	ExtractText(ctx context.Context, base64Image, mimeType string) (string, error)
}

// Extractor dispatches files to per-format extraction routines.
type Extractor struct {
	ocr OCRClient
}

// New creates an Extractor. The OCR client may be nil, in which case
// image files fail extraction.
func New(ocr OCRClient) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract converts file bytes into plain text. The image path makes a
// network call to the OCR service; all other paths are local.
// Returns ErrEmptyContent when the extracted text is empty after trimming.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	kind, err := DetectKind(filename)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case KindText:
		text = string(data)
	case KindPDF:
		text, err = extractPDF(data)
	case KindWord:
		text, err = extractWordDocument(filename, data)
	case KindImage:
		text, err = e.extractImage(ctx, filename, data)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func (e *Extractor) extractImage(ctx context.Context, filename string, data []byte) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("%w: no OCR client configured", ErrExtractionFailed)
	}

	mimeType := imageMimeTypes[strings.ToLower(filepath.Ext(filename))]
	encoded := base64.StdEncoding.EncodeToString(data)

	text, err := e.ocr.ExtractText(ctx, encoded, mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: ocr: %v", ErrExtractionFailed, err)
	}
	return text, nil
}

// TitleFromFilename derives a note title from a file name by stripping
// the extension.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
