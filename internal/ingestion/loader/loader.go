package loader

import (
	"path/filepath"
	"strings"

	"github.com/docuchat/backend/internal/domain"
)

// Loader extracts page-level text from one source file.
type Loader interface {
	Load(path string) ([]domain.PageDocument, error)
}

// ForFile picks a loader by file extension. Unrecognized extensions
// return false and the caller skips the file.
func ForFile(path string) (Loader, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfLoader{}, true
	case ".html", ".htm":
		return htmlLoader{}, true
	default:
		return nil, false
	}
}
