package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// MinExtractedChars is the shortest cleaned text accepted for chunking.
const MinExtractedChars = 50

type SentenceChunker struct {
	ChunkSize int
	Overlap   int
}

func NewSentenceChunker(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &SentenceChunker{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Chunk returns sentence-aligned chunks without identifiers; callers assign
// ids with AssignIDs once the sequence is final.
func (c *SentenceChunker) Chunk(text string, metadata domain.ChunkMetadata) []domain.Chunk {
	windows := windowSentences(splitSentences(text), c.ChunkSize, c.Overlap)
	out := make([]domain.Chunk, 0, len(windows))
	for _, w := range windows {
		parts := make([]string, len(w))
		words := 0
		for i, s := range w {
			parts[i] = s.text
			words += s.words
		}
		out = append(out, domain.Chunk{
			Text:     strings.Join(parts, " "),
			Metadata: metadata,
			Length:   words,
		})
	}
	return out
}

// ChunkDocument validates extracted text, chunks it and assigns ids.
func (c *SentenceChunker) ChunkDocument(text, stem string, metadata domain.ChunkMetadata) ([]domain.Chunk, error) {
	if err := ValidateExtracted(text, metadata.Source); err != nil {
		return nil, err
	}
	return AssignIDs(c.Chunk(text, metadata), stem), nil
}

// AssignIDs sets deterministic "<stem>_chunk_<index>" ids in sequence order.
func AssignIDs(chunks []domain.Chunk, stem string) []domain.Chunk {
	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("%s_chunk_%d", stem, i)
	}
	return chunks
}

// ValidateExtracted rejects text too short to be a real document.
func ValidateExtracted(text, source string) error {
	chars := utf8.RuneCountInString(strings.TrimSpace(text))
	if chars < MinExtractedChars {
		return &domain.ContentExtractionError{Source: source, Chars: chars}
	}
	return nil
}

type sentence struct {
	index int
	text  string
	words int
}

// splitSentences collapses whitespace and cuts after '.', '!' or '?' when
// followed by whitespace. Abbreviations are mis-split; that is accepted.
func splitSentences(text string) []sentence {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	out := make([]sentence, 0, 16)
	start := 0
	for i := 0; i < len(normalized)-1; i++ {
		switch normalized[i] {
		case '.', '!', '?':
			if normalized[i+1] != ' ' {
				continue
			}
			out = appendSentence(out, normalized[start:i+1])
			start = i + 2
			i++
		}
	}
	if start < len(normalized) {
		out = appendSentence(out, normalized[start:])
	}
	return out
}

func appendSentence(dst []sentence, text string) []sentence {
	return append(dst, sentence{
		index: len(dst),
		text:  text,
		words: len(strings.Fields(text)),
	})
}

// windowSentences accumulates sentences up to chunkSize words. A closed
// window seeds the next one with its shortest suffix holding at least
// overlap words, trimmed from the front when the seed plus the incoming
// sentence would not fit. A single oversized sentence forms its own window.
func windowSentences(sentences []sentence, chunkSize, overlap int) [][]sentence {
	var (
		out     [][]sentence
		current []sentence
		words   int
	)
	for _, s := range sentences {
		if len(current) > 0 && words+s.words > chunkSize {
			out = append(out, current)

			seed := overlapSuffix(current, overlap)
			seedWords := countWords(seed)
			for len(seed) > 0 && seedWords+s.words > chunkSize {
				seedWords -= seed[0].words
				seed = seed[1:]
			}

			current = make([]sentence, 0, len(seed)+1)
			current = append(current, seed...)
			current = append(current, s)
			words = seedWords + s.words
			continue
		}
		current = append(current, s)
		words += s.words
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func overlapSuffix(window []sentence, overlap int) []sentence {
	if overlap <= 0 {
		return nil
	}
	total := 0
	start := len(window)
	for start > 0 && total < overlap {
		start--
		total += window[start].words
	}
	return window[start:]
}

func countWords(sentences []sentence) int {
	total := 0
	for _, s := range sentences {
		total += s.words
	}
	return total
}
