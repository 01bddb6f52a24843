package loader

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ClarenceZzz/docpipe/internal/model"
	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
)

// Embedder is the embedding stage: one vector per input text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Writer is the persistence stage with replace-all-per-document semantics.
type Writer interface {
	Replace(ctx context.Context, chunks []model.Chunk) error
	SanityCheck(ctx context.Context, documentID string, expectedCount int) error
}

// DeadLetters receives batches whose embedding permanently failed.
type DeadLetters interface {
	Write(ctx context.Context, record model.DeadLetterRecord) error
}

type Summary struct {
	DocumentID string
	Total      int
	Succeeded  int
	Failed     int
	Persisted  bool
	Elapsed    time.Duration
}

// Loader drives the embed-and-load stage for one document: batches chunks,
// embeds each batch sequentially, dead-letters unrecoverable batches, and
// persists the surviving chunks in one replace transaction.
type Loader struct {
	embedder    Embedder
	writer      Writer
	deadLetters DeadLetters
	batchSize   int
}

func New(embedder Embedder, writer Writer, deadLetters DeadLetters, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Loader{
		embedder:    embedder,
		writer:      writer,
		deadLetters: deadLetters,
		batchSize:   batchSize,
	}
}

// Run processes all chunks of one document. Per-batch embedding failures
// are absorbed: the batch is dead-lettered and the run continues. A failed
// replace transaction is fatal for the document and is returned alongside
// the summary; sanity findings are logged only. The summary always carries
// the final tallies, so nothing fails silently.
func (l *Loader) Run(ctx context.Context, chunks []model.Chunk) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Total: len(chunks)}
	if len(chunks) == 0 {
		logutil.GetLogger(ctx).Warn("no chunks to load")
		summary.Elapsed = time.Since(start)
		return summary, nil
	}
	summary.DocumentID = chunks[0].DocumentID
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", summary.DocumentID))

	var embedded []model.Chunk
	aborted := false
	for batchIndex, batchStart := 0, 0; batchStart < len(chunks); batchIndex, batchStart = batchIndex+1, batchStart+l.batchSize {
		batchEnd := batchStart + l.batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		// Cooperative cancellation point: never start a new batch after a
		// stop request; chunks never submitted are counted failed without
		// a dead letter.
		if ctx.Err() != nil {
			summary.Failed += len(chunks) - batchStart
			aborted = true
			logger.Warn("run cancelled between batches", zap.Int("batch_index", batchIndex))
			break
		}

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := l.embedder.Embed(ctx, texts)
		if err != nil {
			summary.Failed += len(batch)
			l.deadLetter(ctx, summary.DocumentID, batchIndex, batch, err)
			logger.Error("batch embedding failed",
				zap.Int("batch_index", batchIndex),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			if !appErr.IsEmbeddingUnavailable(err) && ctx.Err() != nil {
				// In-flight abort: the batch was dead-lettered above, the
				// rest of the document was never submitted.
				summary.Failed += len(chunks) - batchEnd
				aborted = true
				break
			}
			continue
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
		embedded = append(embedded, batch...)
		summary.Succeeded += len(batch)
	}

	if len(embedded) > 0 {
		if err := l.writer.Replace(ctx, embedded); err != nil {
			summary.Elapsed = time.Since(start)
			logger.Error("persistence failed", zap.Error(err))
			return summary, err
		}
		summary.Persisted = true
		if err := l.writer.SanityCheck(ctx, summary.DocumentID, len(embedded)); err != nil {
			// Findings need operator attention but never undo the write.
			logger.Warn("sanity check reported findings", zap.Error(err))
		}
	} else {
		logger.Warn("no chunks embedded successfully, skipping persistence")
	}

	summary.Elapsed = time.Since(start)
	logger.Info("load finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Bool("persisted", summary.Persisted),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if aborted {
		return summary, ctx.Err()
	}
	return summary, nil
}

func (l *Loader) deadLetter(ctx context.Context, documentID string, batchIndex int, batch []model.Chunk, cause error) {
	if l.deadLetters == nil {
		return
	}
	record := model.DeadLetterRecord{
		DocumentID: documentID,
		BatchIndex: batchIndex,
		Reason:     cause.Error(),
	}
	for _, chunk := range batch {
		record.Entries = append(record.Entries, model.DeadLetterEntry{
			ChunkID: chunk.ChunkID,
			Content: chunk.Content,
		})
	}
	// Best effort: use a detached context so a cancelled run can still
	// record what it was doing.
	if err := l.deadLetters.Write(context.WithoutCancel(ctx), record); err != nil {
		logutil.GetLogger(ctx).Error("dead letter write failed",
			zap.String("document_id", documentID),
			zap.Int("batch_index", batchIndex),
			zap.Error(err),
		)
	}
}
