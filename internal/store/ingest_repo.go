package store

import (
	"context"
	"database/sql"

	"github.com/ClarenceZzz/docpipe/internal/model"
	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
)

// IngestRepo records the last successful load per document so unchanged
// re-runs can be skipped.
type IngestRepo struct {
	db *sql.DB
}

func NewIngestRepo(db *sql.DB) *IngestRepo {
	return &IngestRepo{db: db}
}

func (r *IngestRepo) Get(ctx context.Context, documentID string) (*model.IngestRecord, error) {
	const query = `
		SELECT document_id, content_hash, chunk_count, mtime
		FROM document_ingests
		WHERE document_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, documentID)
	var item model.IngestRecord
	if err := row.Scan(&item.DocumentID, &item.ContentHash, &item.ChunkCount, &item.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *IngestRepo) Save(ctx context.Context, item *model.IngestRecord) error {
	const query = `
		INSERT INTO document_ingests (document_id, content_hash, chunk_count, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.DocumentID,
		item.ContentHash,
		item.ChunkCount,
		item.Mtime,
	)
	return err
}
