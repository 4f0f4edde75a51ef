package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writePDF assembles a minimal uncompressed PDF with one page per
// entry; an empty entry produces a page with no text. Offsets in the
// xref table are computed from the serialized objects, so the file is
// well formed for any page set.
func writePDF(t *testing.T, name string, pages []string) string {
	t.Helper()

	fontRef := 3 + 2*len(pages)
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	}
	for i, text := range pages {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontRef, 3+2*i+1))
		var stream string
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture pdf: %v", err)
	}
	return path
}

func TestPDFLoaderPageProvenance(t *testing.T) {
	path := writePDF(t, "report.pdf", []string{"First page body text", "", "Third page body text"})

	docs, err := (pdfLoader{}).Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 documents with the blank page dropped, got %d", len(docs))
	}
	// Page numbers stay 1-based against the file, not renumbered after
	// the drop.
	if docs[0].Page != 1 || docs[1].Page != 3 {
		t.Fatalf("pages: want=[1 3] got=[%d %d]", docs[0].Page, docs[1].Page)
	}
	for _, doc := range docs {
		if doc.SourceName != "report.pdf" {
			t.Fatalf("source name: want=%q got=%q", "report.pdf", doc.SourceName)
		}
	}
	if !strings.Contains(docs[0].Text, "First page body text") {
		t.Fatalf("page 1 text: %q", docs[0].Text)
	}
	if !strings.Contains(docs[1].Text, "Third page body text") {
		t.Fatalf("page 3 text: %q", docs[1].Text)
	}
}

func TestPDFLoaderDropsWhitespaceOnlyPage(t *testing.T) {
	path := writePDF(t, "sparse.pdf", []string{"   ", "Real content"})

	docs, err := (pdfLoader{}).Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 document, got %d", len(docs))
	}
	if docs[0].Page != 2 {
		t.Fatalf("page: want=2 got=%d", docs[0].Page)
	}
}

func TestPDFLoaderMalformedFile(t *testing.T) {
	path := writeTempFile(t, "broken.pdf", "this is not a pdf")

	if _, err := (pdfLoader{}).Load(path); err == nil {
		t.Fatal("want error for malformed pdf, got nil")
	}
}
