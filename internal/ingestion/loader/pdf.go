package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docuchat/backend/internal/domain"
)

type pdfLoader struct{}

// Load extracts one PageDocument per PDF page. Pages with no
// extractable text are dropped.
func (pdfLoader) Load(path string) ([]domain.PageDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sourceName := filepath.Base(path)
	total := reader.NumPage()
	docs := make([]domain.PageDocument, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s page %d: %w", sourceName, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, domain.PageDocument{
			Text:       text,
			SourceName: sourceName,
			Page:       i,
		})
	}
	return docs, nil
}
