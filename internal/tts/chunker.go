package tts

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text into pieces of at most limit bytes for the synthesis
// service. Paragraphs are accumulated into a chunk until the next one would
// push it past the limit. A single paragraph that is itself too large is
// force-split at the last space before the limit, or hard-cut when it has no
// spaces. Splitting at paragraph and word boundaries keeps the synthesized
// audio free of unnatural pauses and cut-off words.
//
// Concatenating the chunks reproduces the input modulo whitespace; no chunk
// is ever empty.
func ChunkText(text string, limit int) []string {
	var chunks []string

	emit := func(chunk string) {
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}

	current := ""
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) >= limit {
			// Flush whatever preceded the oversized paragraph first so
			// chunk order matches text order.
			emit(current)
			current = ""

			start := 0
			for start < len(paragraph) {
				end := start + limit
				if end >= len(paragraph) {
					emit(paragraph[start:])
					break
				}

				cut := strings.LastIndexByte(paragraph[start:end], ' ')
				if cut <= 0 {
					// No word boundary before the limit: hard cut, backed
					// off to a rune boundary.
					for end > start+1 && !utf8.RuneStart(paragraph[end]) {
						end--
					}
					emit(paragraph[start:end])
					start = end
					continue
				}

				emit(paragraph[start : start+cut])
				start += cut + 1 // skip the space
			}
			continue
		}

		if len(current)+len(paragraph)+1 < limit {
			current += paragraph + "\n"
		} else {
			emit(current)
			current = paragraph + "\n"
		}
	}
	emit(current)

	return chunks
}
