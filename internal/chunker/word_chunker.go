package chunker

import (
	"strings"

	"docrag/internal/domain"
)

// DefaultWordsPerChunk is the window size used when none is configured.
const DefaultWordsPerChunk = 500

// WordChunker splits text into non-overlapping windows of a fixed word count.
// Words are whitespace-delimited and keep document order; the last window may be shorter.
type WordChunker struct {
	wordsPerChunk int
}

func NewWordChunker(wordsPerChunk int) *WordChunker {
	if wordsPerChunk <= 0 {
		wordsPerChunk = DefaultWordsPerChunk
	}
	return &WordChunker{wordsPerChunk: wordsPerChunk}
}

// Size returns the configured window size in words.
func (c *WordChunker) Size() int { return c.wordsPerChunk }

func (c *WordChunker) Chunk(text string) []domain.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, 0, (len(words)+c.wordsPerChunk-1)/c.wordsPerChunk)
	for start := 0; start < len(words); start += c.wordsPerChunk {
		end := start + c.wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, domain.Chunk{
			Index:     len(chunks),
			WordStart: start,
			WordEnd:   end,
			Text:      strings.Join(words[start:end], " "),
		})
	}
	return chunks
}
