package job

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ClarenceZzz/docpipe/internal/ingest"
)

// IngestJob walks a directory and re-ingests every markdown and text file
// in it. Unchanged documents are skipped by the service's content hash.
type IngestJob struct {
	svc *ingest.Service
	dir string
}

func NewIngestJob(svc *ingest.Service, dir string) *IngestJob {
	return &IngestJob{svc: svc, dir: dir}
}

func (j *IngestJob) Name() string {
	return "directory_ingest"
}

func (j *IngestJob) Run(ctx context.Context) error {
	if j.svc == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("dir", j.dir))
	var processed, failed int
	err := filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed++
		if _, err := j.svc.IngestFile(ctx, path, "", "", false); err != nil {
			failed++
			logger.Error("ingest file failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk ingest dir: %w", err)
	}
	logger.Info("directory ingest done", zap.Int("processed", processed), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, processed)
	}
	return nil
}
