package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

// writeTestDOCX creates a minimal DOCX package on disk.
func writeTestDOCX(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)
	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

// writeTestPDF creates an uncompressed PDF with one Helvetica text line per page.
func writeTestPDF(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()
	var objects []string
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	fontID := 3 + 2*len(pages)
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
	)
	for i, line := range pages {
		content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestInterfaceCompliance(t *testing.T) {
	var _ domain.Parser = (*Parser)(nil)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"report.pdf", FormatPDF},
		{"REPORT.PDF", FormatPDF},
		{"/a/b/notes.docx", FormatDOCX},
		{"Notes.DocX", FormatDOCX},
		{"readme.txt", FormatPlainText},
		{"readme.TXT", FormatPlainText},
		{"sheet.xlsx", FormatUnsupported},
		{"noext", FormatUnsupported},
		{"archive.txt.gz", FormatUnsupported},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFormat(tc.path))
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "pdf", FormatPDF.String())
	assert.Equal(t, "docx", FormatDOCX.String())
	assert.Equal(t, "txt", FormatPlainText.String())
	assert.Equal(t, "unsupported", FormatUnsupported.String())
}

func TestParse_PlainTextVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	content := "  Grüße aus Köln\n\tsecond line  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

func TestParse_PlainTextMissingFile(t *testing.T) {
	_, err := New().Parse(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestParse_UnsupportedYieldsEmptyText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c"), 0o644))

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestParse_UnsupportedMissingFileIsNotAnError(t *testing.T) {
	text, err := New().Parse(filepath.Join(t.TempDir(), "nothing.odt"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestParse_DOCXParagraphsOnePerLine(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`
	path := writeTestDOCX(t, t.TempDir(), "letter.DOCX", docXML)

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello World\n\nSecond paragraph\n", text)
}

func TestParse_DOCXHyperlinkRuns(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<w:body>
<w:p><w:r><w:t xml:space="preserve">See </w:t></w:r><w:hyperlink r:id="rId5"><w:r><w:rPr><w:rStyle w:val="Hyperlink"/></w:rPr><w:t>the guide</w:t></w:r></w:hyperlink><w:r><w:t xml:space="preserve"> for details.</w:t></w:r></w:p>
<w:p><w:smartTag w:element="place"><w:r><w:t>Oslo</w:t></w:r></w:smartTag></w:p>
</w:body>
</w:document>`
	path := writeTestDOCX(t, t.TempDir(), "links.docx", docXML)

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "See the guide for details.\nOslo\n", text)
}

func TestParse_DOCXWithoutBody(t *testing.T) {
	path := writeTestDOCX(t, t.TempDir(), "empty.docx", "")

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestParse_DOCXNotAZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	_, err := New().Parse(path)
	assert.Error(t, err)
}

func TestParse_PDFInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 truncated"), 0o644))

	_, err := New().Parse(path)
	assert.Error(t, err)
}

func TestParse_PDFPagesInOrder(t *testing.T) {
	path := writeTestPDF(t, t.TempDir(), "report.pdf", "Hello page one", "Second page here")

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello page one\nSecond page here\n", text)
}
