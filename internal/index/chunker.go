package index

import (
	"github.com/ppiankov/trustbutverify/internal/model"
)

// Chunk splits a document into windows of size lines, consecutive windows
// sharing overlap lines. Chunk text carries no line tags. IDs are assigned
// by the caller.
func Chunk(doc *model.CanonicalDocument, size, overlap int) []model.Chunk {
	if size <= 0 {
		size = 50
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var chunks []model.Chunk
	for i := 0; i < len(doc.Lines); i += step {
		end := i + size
		if end > len(doc.Lines) {
			end = len(doc.Lines)
		}
		lines := doc.Lines[i:end]
		chunks = append(chunks, model.Chunk{
			Document:  doc.Filename,
			StartLine: lines[0].Number,
			EndLine:   lines[len(lines)-1].Number,
			Text:      model.JoinText(lines),
		})
		if end == len(doc.Lines) {
			break
		}
	}
	return chunks
}
