// Package chunker splits extracted document text into overlapping segments
// sized for embedding and retrieval.
package chunker

import (
	"fmt"
	"unicode"
)

// Chunk is a contiguous segment of the source text. Start and End are rune
// offsets into the source, and Text is always the exact substring [Start, End).
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Boundary adjustment only looks at the tail fifth of a window so chunks stay
// close to the configured size.
const tailDivisor = 5

// Split cuts text into chunks of at most size runes, consecutive chunks
// overlapping by overlap runes. Cuts prefer a paragraph or sentence boundary
// inside the tail of the window and fall back to a hard cut. A boundary-free
// run longer than size is emitted whole as a single oversized chunk, never
// dropped. Empty input yields no chunks.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		var end int
		hard := start + size
		if hard >= len(runes) {
			end = len(runes)
		} else {
			end = cutAt(runes, start, hard)
			if end <= start+overlap {
				// Boundary cut would fall inside the region the previous
				// chunk already covers; hard cut keeps forward progress.
				end = hard
			}
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// cutAt picks the end of the window [start, hard). It returns a position in
// (start, hard] at a paragraph or sentence boundary when one falls inside the
// tail of the window, extends past hard when the window holds a single
// unbreakable run, and otherwise returns hard unchanged.
func cutAt(runes []rune, start, hard int) int {
	hasSpace := false
	for i := start; i < hard; i++ {
		if unicode.IsSpace(runes[i]) {
			hasSpace = true
			break
		}
	}
	if !hasSpace {
		end := hard
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}
		return end
	}

	floor := hard - (hard-start)/tailDivisor
	if floor <= start {
		floor = start + 1
	}

	for i := hard - 1; i >= floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := hard - 2; i >= floor; i-- {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	return hard
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
