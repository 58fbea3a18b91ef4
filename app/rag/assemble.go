package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"GoDocsAI/app/index"
)

const blockSeparator = "\n\n---\n\n"

// Citation names the chunk an answer block was taken from.
type Citation struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// Assemble builds the context block handed to the generator. Chunks are taken
// greedily in ranked order and never split: assembly stops at the first chunk
// whose block would push the context past maxLen characters.
func Assemble(results []index.Result, maxLen int) (string, []Citation) {
	var sb strings.Builder
	var citations []Citation
	length := 0

	for _, r := range results {
		block := fmt.Sprintf("[source: %s #%d]\n%s", r.Entry.DocumentID, r.Entry.ChunkIndex, r.Entry.Text)
		cost := utf8.RuneCountInString(block)
		if length > 0 {
			cost += utf8.RuneCountInString(blockSeparator)
		}
		if length+cost > maxLen {
			break
		}
		if length > 0 {
			sb.WriteString(blockSeparator)
		}
		sb.WriteString(block)
		length += cost
		citations = append(citations, Citation{
			DocumentID: r.Entry.DocumentID,
			ChunkIndex: r.Entry.ChunkIndex,
		})
	}

	return sb.String(), citations
}
