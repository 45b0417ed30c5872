package chunking

import (
	"github.com/reposage/reposage-api/internal/domain/model"
)

// Splitter cuts document text into fixed-size overlapping windows, measured
// in runes. Window starts advance by size minus overlap, so chunk boundaries
// and counts are reproducible run over run, which keeps position-derived
// vector ids stable across re-indexing.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter builds a Splitter. Non-positive sizes fall back to a 1000-rune
// window, and an overlap outside [0, size) falls back to a fifth of the
// window.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split cuts text into overlapping windows. Text that fits in one window is
// returned as a single chunk; empty text produces no chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	step := s.chunkSize - s.chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}

// ChunkDocuments splits every document and stamps each chunk with its
// document's source path. Document order is preserved and the chunks of one
// document stay contiguous in the output.
func (s *Splitter) ChunkDocuments(docs []model.Document) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(docs))
	for _, doc := range docs {
		for _, text := range s.Split(doc.Content) {
			chunks = append(chunks, model.Chunk{Text: text, Source: doc.Source})
		}
	}
	return chunks
}
