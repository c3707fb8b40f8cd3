package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
)

// DefaultSeparators lists split points from most to least preferred:
// paragraphs, lines, sentences, words.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// RecursiveChunker splits text into overlapping chunks of at most
// chunkSize runes. It splits on the first separator present in the text
// and only descends to the next separator for pieces that are still too
// large. Separators stay attached to the start of the piece that follows
// them, so joining the pieces of a chunk reproduces the original text.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewRecursiveChunker creates a chunker using DefaultSeparators.
func NewRecursiveChunker(chunkSize, overlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &RecursiveChunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// Split returns the trimmed, non-empty chunks of text.
func (c *RecursiveChunker) Split(text string) []string {
	return c.split(text, c.separators)
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, s := range separators {
		if strings.Contains(text, s) {
			separator = s
			finer = separators[i+1:]
			break
		}
	}

	var out, pending []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, c.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			out = appendTrimmed(out, piece)
			continue
		}
		out = append(out, c.split(piece, finer)...)
	}
	if len(pending) > 0 {
		out = append(out, c.merge(pending)...)
	}
	return out
}

// merge greedily packs small pieces into chunks. When a chunk is full it
// is emitted and pieces are dropped from its front until what remains fits
// in the overlap budget; the remainder seeds the next chunk.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.chunkSize && len(current) > 0 {
			docs = appendTrimmed(docs, strings.Join(current, ""))
			for total > c.overlap || (total+n > c.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	return appendTrimmed(docs, strings.Join(current, ""))
}

func splitKeepingSeparator(text, separator string) []string {
	parts := strings.Split(text, separator)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, separator+p)
	}
	return out
}

func appendTrimmed(dst []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		dst = append(dst, s)
	}
	return dst
}
