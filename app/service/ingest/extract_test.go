package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForName(t *testing.T) {
	tests := []struct {
		name     string
		expected Format
	}{
		{"notes.txt", FormatText},
		{"Report.PDF", FormatPdf},
		{"letter.docx", FormatDocx},
		{"image.png", FormatUnsupported},
		{"archive.tar.gz", FormatUnsupported},
		{"noextension", FormatUnsupported},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatForName(tt.name), tt.name)
	}
}

func TestExtractPlainText(t *testing.T) {
	text, err := ExtractText([]byte("hello world"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestExtractPlainTextRejectsInvalidUTF8(t *testing.T) {
	_, err := ExtractText([]byte{0xff, 0xfe, 0xfd}, "notes.txt")
	assert.Error(t, err)
}

func TestExtractUnsupportedYieldsSentinel(t *testing.T) {
	text, err := ExtractText([]byte("binary"), "image.png")
	require.NoError(t, err)
	assert.Equal(t, UnsupportedText, text)
}

func TestExtractDocx(t *testing.T) {
	document := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(document))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	text, err := ExtractText(buf.Bytes(), "letter.docx")
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", text)
}

func TestExtractDocxWithoutDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("unrelated.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	_, err = ExtractText(buf.Bytes(), "letter.docx")
	assert.Error(t, err)
}
