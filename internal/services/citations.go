package services

import (
	"strconv"
	"strings"

	"github.com/docuchat/backend/internal/domain"
)

// BuildDocumentContext flattens retrieved documents into prompt
// context and their provenance into citations. Context preserves
// retrieval order (ascending relevance, strongest evidence last);
// citations are deduplicated on (title, locator) keeping first-seen
// order.
func BuildDocumentContext(docs []domain.RetrievedDocument) (string, []domain.Citation) {
	contents := make([]string, len(docs))
	citations := make([]domain.Citation, 0, len(docs))
	for i, doc := range docs {
		contents[i] = doc.Content
		citations = append(citations, domain.Citation{
			Title:   doc.SourceName,
			Locator: strconv.Itoa(doc.Page),
		})
	}
	return strings.Join(contents, "\n"), DedupeCitations(citations)
}

// DedupeCitations drops repeat (title, locator) pairs, keeping the
// first occurrence's position. Idempotent.
func DedupeCitations(citations []domain.Citation) []domain.Citation {
	type key struct{ title, locator string }
	seen := make(map[key]struct{}, len(citations))
	out := make([]domain.Citation, 0, len(citations))
	for _, c := range citations {
		k := key{title: c.Title, locator: c.Locator}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
