package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/docuchat/backend/internal/domain"
)

type htmlLoader struct{}

// Load extracts visible text from an HTML file as a single page 1
// document. Script and style contents are excluded.
func (htmlLoader) Load(path string) ([]domain.PageDocument, error) {
	sourceName := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html %s: %w", sourceName, err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", sourceName, err)
	}

	var sb strings.Builder
	collectText(root, &sb)

	text := normalizeWhitespace(sb.String())
	if text == "" {
		return []domain.PageDocument{}, nil
	}
	return []domain.PageDocument{{
		Text:       text,
		SourceName: sourceName,
		Page:       1,
	}}, nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "head":
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
