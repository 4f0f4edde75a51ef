package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestForFileRecognizesExtensions(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"report.pdf", true},
		{"Report.PDF", true},
		{"page.html", true},
		{"page.htm", true},
		{"notes.txt", false},
		{"image.png", false},
		{"noext", false},
	}
	for _, tc := range cases {
		if _, ok := ForFile(tc.path); ok != tc.ok {
			t.Fatalf("ForFile(%q): want=%v got=%v", tc.path, tc.ok, ok)
		}
	}
}

func TestHTMLLoaderExtractsVisibleText(t *testing.T) {
	path := writeTempFile(t, "doc.html", `<html>
<head><title>ignored</title><style>body{color:red}</style></head>
<body>
  <script>var hidden = true;</script>
  <h1>Heading</h1>
  <p>First paragraph.</p>
  <p>Second   paragraph.</p>
</body></html>`)

	docs, err := (htmlLoader{}).Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.SourceName != "doc.html" {
		t.Fatalf("source name: want=%q got=%q", "doc.html", doc.SourceName)
	}
	if doc.Page != 1 {
		t.Fatalf("page: want=1 got=%d", doc.Page)
	}
	for _, want := range []string{"Heading", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("text missing %q: %q", want, doc.Text)
		}
	}
	for _, banned := range []string{"hidden", "color:red", "ignored"} {
		if strings.Contains(doc.Text, banned) {
			t.Fatalf("text leaked non-visible content %q: %q", banned, doc.Text)
		}
	}
}

func TestHTMLLoaderEmptyBody(t *testing.T) {
	path := writeTempFile(t, "empty.html", `<html><body><script>x()</script></body></html>`)
	docs, err := (htmlLoader{}).Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("want no documents for empty body, got %d", len(docs))
	}
}
