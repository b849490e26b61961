package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 700
	DefaultChunkOverlap = 120
)

// Chunk splits text into windows of size runes that overlap by overlap
// runes. Whitespace-only windows are dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	runes := []rune(text)
	step := size - overlap
	var out []string
	for i := 0; i < len(runes); i += step {
		end := min(i+size, len(runes))
		if c := strings.TrimSpace(string(runes[i:end])); c != "" {
			out = append(out, c)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
