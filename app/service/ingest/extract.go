package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"unicode/utf8"

	"deskbot/app/util/fault"

	"github.com/gen2brain/go-fitz"
)

// UnsupportedText is returned for formats outside the allow-list instead
// of an error, since a wrong suffix is user input, not a pipeline fault.
const UnsupportedText = "Unsupported file type. Only .txt, .pdf, .docx supported."

// ExtractText pulls plain text out of the file bytes according to the
// detected format.
func ExtractText(data []byte, fileName string) (string, error) {
	switch FormatForName(fileName) {
	case FormatText:
		return extractPlainText(data)
	case FormatPdf:
		return extractPdf(data)
	case FormatDocx:
		return extractDocx(data)
	default:
		return UnsupportedText, nil
	}
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fault.Validation().Errorf("text file is not valid UTF-8")
	}

	return string(data), nil
}

// extractPdf concatenates per-page text, skipping pages with nothing
// extractable (image-only pages).
func extractPdf(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fault.Validation().Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, strings.TrimSpace(text))
		}
	}

	return strings.Join(pages, "\n"), nil
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

// extractDocx reads word/document.xml from the docx archive and joins
// paragraph text with newlines.
func extractDocx(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fault.Validation().Errorf("failed to open docx archive: %w", err)
	}

	var raw []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fault.Validation().Errorf("failed to open document.xml: %w", err)
		}
		raw, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fault.Validation().Errorf("failed to read document.xml: %w", err)
		}
		break
	}

	if raw == nil {
		return "", fault.Validation().Errorf("docx archive has no document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fault.Validation().Errorf("failed to parse document.xml: %w", err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var builder strings.Builder
		for _, run := range p.Runs {
			builder.WriteString(run.Text)
		}
		paragraphs = append(paragraphs, builder.String())
	}

	return strings.Join(paragraphs, "\n"), nil
}
