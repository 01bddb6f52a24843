package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ClarenceZzz/docpipe/internal/chunker"
	"github.com/ClarenceZzz/docpipe/internal/loader"
	"github.com/ClarenceZzz/docpipe/internal/model"
	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
	"github.com/ClarenceZzz/docpipe/internal/store"
)

// Service runs the whole pipeline for one document file: chunk, embed,
// load. A content hash of the input short-circuits re-runs of unchanged
// documents.
type Service struct {
	chunker *chunker.Chunker
	loader  *loader.Loader
	ingests *store.IngestRepo
}

func NewService(c *chunker.Chunker, l *loader.Loader, ingests *store.IngestRepo) *Service {
	return &Service{chunker: c, loader: l, ingests: ingests}
}

// IngestFile processes path as one document. documentID and title default
// to the file name without extension. The returned summary is nil when the
// document was skipped as unchanged.
func (s *Service) IngestFile(ctx context.Context, path, documentID, title string, force bool) (*loader.Summary, error) {
	if documentID == "" {
		documentID = DocumentIDFromPath(path)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", documentID), zap.String("path", path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	hash := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(hash[:])

	if !force && s.ingests != nil {
		existing, err := s.ingests.Get(ctx, documentID)
		if err != nil && !appErr.IsNotFound(err) {
			return nil, fmt.Errorf("lookup ingest record: %w", err)
		}
		if err == nil && existing.ContentHash == contentHash {
			logger.Info("document unchanged, skipping")
			return nil, nil
		}
	}

	chunks, err := s.chunker.Chunk(ctx, string(raw), documentID, model.Metadata{Title: title})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Warn("document produced no chunks")
		return &loader.Summary{DocumentID: documentID}, nil
	}

	summary, err := s.loader.Run(ctx, chunks)
	if err != nil {
		return summary, err
	}
	// Only a fully clean run marks the document as done; a run with dead
	// letters should be retried by the next invocation.
	if summary.Persisted && summary.Failed == 0 && s.ingests != nil {
		record := &model.IngestRecord{
			DocumentID:  documentID,
			ContentHash: contentHash,
			ChunkCount:  summary.Succeeded,
			Mtime:       time.Now().UnixMilli(),
		}
		if err := s.ingests.Save(ctx, record); err != nil {
			logger.Warn("save ingest record failed", zap.Error(err))
		}
	}
	return summary, nil
}

// DocumentIDFromPath derives a stable document ID from a file path: the
// base name without extension, lowered, with runs of non-alphanumerics
// collapsed to single dashes.
func DocumentIDFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.ToLower(name)
	var sb strings.Builder
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
