package retrieval

import (
	"strings"
	"unicode/utf8"
)

const maxChunkLen = 1200

// chunkText splits extracted text into retrieval-sized pieces, breaking
// on paragraph boundaries where possible.
func chunkText(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if current.Len()+len(paragraph) > maxChunkLen && current.Len() > 0 {
			flush()
		}

		for len(paragraph) > maxChunkLen {
			cut := splitIndex(paragraph)
			chunks = append(chunks, strings.TrimSpace(paragraph[:cut]))
			paragraph = paragraph[cut:]
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}

// splitIndex returns the cut point for an oversized paragraph, backed up
// so a multi-byte rune is never split in half.
func splitIndex(paragraph string) int {
	cut := maxChunkLen
	for cut > 0 && !utf8.RuneStart(paragraph[cut]) {
		cut--
	}
	if cut == 0 {
		return maxChunkLen
	}

	return cut
}
