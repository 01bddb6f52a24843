package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/ClarenceZzz/docpipe/internal/model"
	"github.com/ClarenceZzz/docpipe/internal/pkg/dbutil"
	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
)

const chunkTable = "document_chunks"

// ChunkRepo persists chunks with replace-all-per-document semantics.
type ChunkRepo struct {
	db         *sql.DB
	dimensions int
}

func NewChunkRepo(db *sql.DB, dimensions int) *ChunkRepo {
	if dimensions <= 0 {
		dimensions = model.EmbeddingDimension
	}
	return &ChunkRepo{db: db, dimensions: dimensions}
}

// Replace deletes every stored chunk of the document and inserts the
// supplied generation inside one transaction. Any failure rolls the whole
// transaction back, so the previous generation survives a failed re-run.
func (r *ChunkRepo) Replace(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks provided for replace")
	}
	documentID := chunks[0].DocumentID
	if documentID == "" {
		return fmt.Errorf("chunks must include document_id")
	}

	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			return fmt.Errorf("all chunks must share document_id %s, got %s", documentID, chunk.DocumentID)
		}
		if len(chunk.Embedding) != r.dimensions {
			return fmt.Errorf("embedding dimension mismatch for chunk %s: expected %d, got %d",
				chunk.ChunkID, r.dimensions, len(chunk.Embedding))
		}
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for chunk %s: %w", chunk.ChunkID, err)
		}
		rows = append(rows, map[string]interface{}{
			"chunk_id":    chunk.ChunkID,
			"document_id": chunk.DocumentID,
			"content":     chunk.Content,
			"embedding":   pgvector.NewVector(chunk.Embedding),
			"metadata":    metadata,
		})
	}
	insertSQL, insertArgs, err := builder.BuildInsert(chunkTable, rows)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	insertSQL, insertArgs = dbutil.Finalize(insertSQL, insertArgs)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", appErr.ErrTransactionFailure, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("%w: delete previous chunks of %s: %v", appErr.ErrTransactionFailure, documentID, err)
	}
	if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: duplicate chunk id within %s: %v", appErr.ErrTransactionFailure, documentID, err)
		}
		return fmt.Errorf("%w: insert %d chunks of %s: %v", appErr.ErrTransactionFailure, len(rows), documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", appErr.ErrTransactionFailure, err)
	}
	return nil
}

// SanityCheck re-reads the stored rows of a document after a successful
// replace: total count, plus a random sample verified for embedding
// dimension, non-empty content, and well-formed metadata. Findings come
// back as ErrSanityCheck; the caller decides whether to alert.
func (r *ChunkRepo) SanityCheck(ctx context.Context, documentID string, expectedCount int) error {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID,
	).Scan(&count); err != nil {
		return fmt.Errorf("count chunks of %s: %w", documentID, err)
	}

	var findings []string
	if count != expectedCount {
		findings = append(findings, fmt.Sprintf("chunk count mismatch: expected %d, got %d", expectedCount, count))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT chunk_id, embedding, content, metadata
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY random()
		LIMIT 3
	`, documentID)
	if err != nil {
		return fmt.Errorf("sample chunks of %s: %w", documentID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var chunkID, content string
		var embedding pgvector.Vector
		var metadata []byte
		if err := rows.Scan(&chunkID, &embedding, &content, &metadata); err != nil {
			return fmt.Errorf("scan sampled chunk of %s: %w", documentID, err)
		}
		if got := len(embedding.Slice()); got != r.dimensions {
			findings = append(findings, fmt.Sprintf("chunk %s embedding dimension %d, want %d", chunkID, got, r.dimensions))
		}
		if content == "" {
			findings = append(findings, fmt.Sprintf("chunk %s has empty content", chunkID))
		}
		var meta model.Metadata
		if err := json.Unmarshal(metadata, &meta); err != nil {
			findings = append(findings, fmt.Sprintf("chunk %s has invalid metadata json", chunkID))
			continue
		}
		var keys map[string]json.RawMessage
		_ = json.Unmarshal(metadata, &keys)
		for _, required := range []string{"title", "section", "chunk_index"} {
			if _, ok := keys[required]; !ok {
				findings = append(findings, fmt.Sprintf("chunk %s metadata is missing %q", chunkID, required))
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sampled chunks of %s: %w", documentID, err)
	}

	if len(findings) > 0 {
		return fmt.Errorf("%w: %s", appErr.ErrSanityCheck, strings.Join(findings, "; "))
	}
	return nil
}

// ListByDocument returns the stored chunks of a document ordered by index.
func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"document_id": documentID,
		"_orderby":    "chunk_id asc",
	}
	query, args, err := builder.BuildSelect(chunkTable, where,
		[]string{"chunk_id", "document_id", "content", "embedding", "metadata"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.Chunk
	for rows.Next() {
		var chunk model.Chunk
		var embedding pgvector.Vector
		var metadata []byte
		if err := rows.Scan(&chunk.ChunkID, &chunk.DocumentID, &chunk.Content, &embedding, &metadata); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding.Slice()
		if err := json.Unmarshal(metadata, &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", chunk.ChunkID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
