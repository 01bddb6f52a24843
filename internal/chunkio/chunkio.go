package chunkio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ClarenceZzz/docpipe/internal/model"
)

// maxLineSize bounds one serialized chunk line; generous because a chunk
// with its embedding attached runs to tens of kilobytes.
const maxLineSize = 4 * 1024 * 1024

// Read loads a JSONL chunk file: one chunk object per line, blank lines
// ignored.
func Read(path string) ([]model.Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	defer file.Close()

	var chunks []model.Chunk
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var chunk model.Chunk
		if err := json.Unmarshal([]byte(text), &chunk); err != nil {
			return nil, fmt.Errorf("decode chunk at line %d: %w", line, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunk file: %w", err)
	}
	return chunks, nil
}

// Write serializes chunks to a JSONL file, one object per line.
func Write(path string, chunks []model.Chunk) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, chunk := range chunks {
		if err := encoder.Encode(chunk); err != nil {
			return fmt.Errorf("encode chunk %s: %w", chunk.ChunkID, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush chunk file: %w", err)
	}
	return nil
}
