// Package extract turns stored files into raw text, dispatched by file
// extension to per-format handlers.
package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"ragify/types"
)

// Handler extracts raw text from a file of one format family.
type Handler interface {
	ID() string
	Supports(extension string) bool
	Extract(filePath string) (string, error)
}

// Extractor dispatches to the first handler claiming the file's extension.
type Extractor struct {
	handlers []Handler
}

// New builds an extractor with the default handler set.
func New() *Extractor {
	return &Extractor{
		handlers: []Handler{
			&PlainTextHandler{},
			&SpreadsheetHandler{},
			&HTMLHandler{},
			NewPDFHandler(),
			&DocxHandler{},
			NewDocHandler(),
		},
	}
}

// NewWithHandlers builds an extractor with an explicit handler set.
func NewWithHandlers(handlers ...Handler) *Extractor {
	return &Extractor{handlers: handlers}
}

// Extract converts the file at filePath into raw text. The extension picks
// the handler; unknown or missing extensions fail without touching the file.
func (e *Extractor) Extract(filePath string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	if ext == "" {
		return "", types.NewError(types.ErrUnsupportedFormat, "unrecognized file format: %s has no extension", filepath.Base(filePath))
	}

	for _, h := range e.handlers {
		if h.Supports(ext) {
			return h.Extract(filePath)
		}
	}
	return "", types.NewError(types.ErrUnsupportedFormat, "unsupported file type: %s", ext)
}

var (
	crlfRe   = regexp.MustCompile(`\r\n?`)
	ctrlWSRe = regexp.MustCompile("[\t\f\v]+")
)

// SanitizeContent normalizes line endings to \n, collapses tab, form-feed
// and vertical-tab runs to single spaces and trims. Its output is what the
// chunker consumes.
func SanitizeContent(content string) string {
	content = crlfRe.ReplaceAllString(content, "\n")
	content = ctrlWSRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
