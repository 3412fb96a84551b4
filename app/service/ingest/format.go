package ingest

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of file formats the pipeline understands.
// Detection is by filename suffix only; there is no content sniffing.
type Format int

const (
	FormatUnsupported Format = iota
	FormatText
	FormatPdf
	FormatDocx
)

func FormatForName(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt":
		return FormatText
	case ".pdf":
		return FormatPdf
	case ".docx":
		return FormatDocx
	default:
		return FormatUnsupported
	}
}

func (f Format) String() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatPdf:
		return "pdf"
	case FormatDocx:
		return "docx"
	default:
		return "unsupported"
	}
}
