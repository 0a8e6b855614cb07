package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragify/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract_PlainText(t *testing.T) {
	e := New()
	path := writeFile(t, "notes.txt", "hello from a text file")

	text, err := e.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "hello from a text file", text)
}

func TestExtract_NoExtension(t *testing.T) {
	e := New()

	_, err := e.Extract("/tmp/does-not-exist/README")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrUnsupportedFormat))
}

func TestExtract_UnknownExtension(t *testing.T) {
	e := New()

	_, err := e.Extract("/tmp/does-not-exist/archive.tar.gz")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrUnsupportedFormat))
}

func TestExtract_DispatchesToFirstClaimingHandler(t *testing.T) {
	e := New()
	path := writeFile(t, "page.html", "<html><body><p>visible</p></body></html>")

	text, err := e.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "visible", text)
}

func TestSanitizeContent(t *testing.T) {
	in := "line one\r\nline two\rline three\tcolumn\f\vend  "
	out := SanitizeContent(in)
	assert.Equal(t, "line one\nline two\nline three column end", out)
}

func TestStripHTML(t *testing.T) {
	in := `<!DOCTYPE html>
<html>
<head><title>ignored</title><style>p { color: red }</style></head>
<body>
<!-- a comment -->
<script>console.log("ignored")</script>
<h1>Heading</h1>
<p>First &amp; foremost.</p>
<p>Visit <a href="https://example.com">our site</a> today.<br>Thanks.</p>
</body>
</html>`

	out := stripHTML(in)
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "First & foremost.")
	assert.Contains(t, out, "Visit our site today.")
	assert.Contains(t, out, "Thanks.")
	assert.NotContains(t, out, "ignored")
	assert.NotContains(t, out, "color: red")
	assert.NotContains(t, out, "example.com")
	assert.NotContains(t, out, "<")
}

func writeDocx(t *testing.T, paragraphs []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	entry, err := w.Create("word/document.xml")
	require.NoError(t, err)

	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`

	_, err = entry.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestDocxHandler_Extract(t *testing.T) {
	path := writeDocx(t, []string{"first paragraph", "second paragraph"})

	text, err := (&DocxHandler{}).Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "first paragraph\nsecond paragraph", text)
}

func TestDocxHandler_NotAnArchive(t *testing.T) {
	path := writeFile(t, "fake.docx", "not a zip")

	_, err := (&DocxHandler{}).Extract(path)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrUnsupportedFormat))
}

func TestDocxHandler_MissingDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = (&DocxHandler{}).Extract(path)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrUnsupportedFormat))
}

func TestSpreadsheetHandler_CSV(t *testing.T) {
	path := writeFile(t, "table.csv", "name,age\nalice,30\nbob,25\n")

	text, err := (&SpreadsheetHandler{}).Extract(path)
	require.NoError(t, err)
	assert.Contains(t, text, "name\tage")
	assert.Contains(t, text, "alice\t30")
	assert.Contains(t, text, "bob\t25")
}
