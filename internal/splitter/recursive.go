package splitter

import (
	"fmt"

	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
)

// Recursive splits text into fixed-size windows that overlap by a fixed
// number of characters. Lengths are measured in runes so multi-byte text
// chunks the same way as ASCII.
type Recursive struct {
	chunkSize int
	overlap   int
}

func NewRecursive(chunkSize, overlap int) (*Recursive, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", appErr.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", appErr.ErrInvalidConfiguration, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", appErr.ErrInvalidConfiguration, overlap, chunkSize)
	}
	return &Recursive{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split produces overlapping spans covering the whole input. Empty input
// yields nil; input no longer than the chunk size yields a single span.
func (r *Recursive) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	length := len(runes)
	if length <= r.chunkSize {
		return []string{text}
	}
	var spans []string
	start := 0
	for start < length {
		end := start + r.chunkSize
		if end > length {
			end = length
		}
		spans = append(spans, string(runes[start:end]))
		if end >= length {
			break
		}
		start = end - r.overlap
	}
	return spans
}
