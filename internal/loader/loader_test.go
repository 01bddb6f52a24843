package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ClarenceZzz/docpipe/internal/model"
	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
)

type scriptedEmbedder struct {
	calls    int
	failCall map[int]error
	dim      int
}

func (e *scriptedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if err, ok := e.failCall[e.calls]; ok {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

type recordingWriter struct {
	replaced     []model.Chunk
	replaceErr   error
	sanityErr    error
	sanityCalled bool
}

func (w *recordingWriter) Replace(ctx context.Context, chunks []model.Chunk) error {
	if w.replaceErr != nil {
		return w.replaceErr
	}
	w.replaced = append([]model.Chunk(nil), chunks...)
	return nil
}

func (w *recordingWriter) SanityCheck(ctx context.Context, documentID string, expectedCount int) error {
	w.sanityCalled = true
	return w.sanityErr
}

type recordingSink struct {
	records []model.DeadLetterRecord
	err     error
}

func (s *recordingSink) Write(ctx context.Context, record model.DeadLetterRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func makeChunks(documentID string, n int) []model.Chunk {
	chunks := make([]model.Chunk, n)
	for i := range chunks {
		chunks[i] = model.Chunk{
			DocumentID: documentID,
			ChunkID:    fmt.Sprintf("%s-%04d", documentID, i),
			Content:    fmt.Sprintf("content %d", i),
			Metadata:   model.Metadata{Title: "T", ChunkIndex: i},
		}
	}
	return chunks
}

func TestRun_AllBatchesSucceed(t *testing.T) {
	embedder := &scriptedEmbedder{dim: 8}
	writer := &recordingWriter{}
	sink := &recordingSink{}
	l := New(embedder, writer, sink, 2)

	summary, err := l.Run(context.Background(), makeChunks("doc-1", 5))
	require.NoError(t, err)
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 5, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)
	require.True(t, summary.Persisted)
	require.True(t, writer.sanityCalled)
	require.Len(t, writer.replaced, 5)
	require.Empty(t, sink.records)
	require.Equal(t, 3, embedder.calls)
	for _, chunk := range writer.replaced {
		require.Len(t, chunk.Embedding, 8)
	}
}

func TestRun_FailedBatchIsDeadLetteredAndRunContinues(t *testing.T) {
	unavailable := fmt.Errorf("%w after 3 attempts: boom", appErr.ErrEmbeddingUnavailable)
	embedder := &scriptedEmbedder{dim: 8, failCall: map[int]error{1: unavailable}}
	writer := &recordingWriter{}
	sink := &recordingSink{}
	l := New(embedder, writer, sink, 2)

	summary, err := l.Run(context.Background(), makeChunks("doc-1", 4))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 2, summary.Failed)
	require.True(t, summary.Persisted)

	// Only the surviving batch is persisted.
	require.Len(t, writer.replaced, 2)
	require.Equal(t, "doc-1-0002", writer.replaced[0].ChunkID)

	// Exactly one dead letter, carrying the failed batch's raw content and
	// original chunk IDs.
	require.Len(t, sink.records, 1)
	record := sink.records[0]
	require.Equal(t, "doc-1", record.DocumentID)
	require.Equal(t, 0, record.BatchIndex)
	require.Len(t, record.Entries, 2)
	require.Equal(t, "doc-1-0000", record.Entries[0].ChunkID)
	require.Equal(t, "content 0", record.Entries[0].Content)
}

func TestRun_AllBatchesFailSkipsPersistence(t *testing.T) {
	unavailable := fmt.Errorf("%w: down", appErr.ErrEmbeddingUnavailable)
	embedder := &scriptedEmbedder{dim: 8, failCall: map[int]error{1: unavailable, 2: unavailable}}
	writer := &recordingWriter{}
	sink := &recordingSink{}
	l := New(embedder, writer, sink, 2)

	summary, err := l.Run(context.Background(), makeChunks("doc-1", 4))
	require.NoError(t, err)
	require.Equal(t, 0, summary.Succeeded)
	require.Equal(t, 4, summary.Failed)
	require.False(t, summary.Persisted)
	require.False(t, writer.sanityCalled)
	require.Empty(t, writer.replaced)
	require.Len(t, sink.records, 2)
}

func TestRun_ReplaceFailureIsFatal(t *testing.T) {
	embedder := &scriptedEmbedder{dim: 8}
	writer := &recordingWriter{replaceErr: fmt.Errorf("%w: insert blew up", appErr.ErrTransactionFailure)}
	l := New(embedder, writer, &recordingSink{}, 2)

	summary, err := l.Run(context.Background(), makeChunks("doc-1", 2))
	require.ErrorIs(t, err, appErr.ErrTransactionFailure)
	require.False(t, summary.Persisted)
	require.Equal(t, 2, summary.Succeeded)
}

func TestRun_SanityFindingsAreNonFatal(t *testing.T) {
	embedder := &scriptedEmbedder{dim: 8}
	writer := &recordingWriter{sanityErr: fmt.Errorf("%w: count off", appErr.ErrSanityCheck)}
	l := New(embedder, writer, &recordingSink{}, 2)

	summary, err := l.Run(context.Background(), makeChunks("doc-1", 2))
	require.NoError(t, err)
	require.True(t, summary.Persisted)
}

func TestRun_SinkFailureDoesNotMaskBatchFailure(t *testing.T) {
	unavailable := fmt.Errorf("%w: down", appErr.ErrEmbeddingUnavailable)
	embedder := &scriptedEmbedder{dim: 8, failCall: map[int]error{1: unavailable}}
	writer := &recordingWriter{}
	sink := &recordingSink{err: errors.New("disk full")}
	l := New(embedder, writer, sink, 2)

	summary, err := l.Run(context.Background(), makeChunks("doc-1", 2))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Failed)
	require.False(t, summary.Persisted)
}

func TestRun_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	embedder := &scriptedEmbedder{dim: 8}
	writer := &recordingWriter{}
	l := New(embedder, writer, &recordingSink{}, 2)

	summary, err := l.Run(ctx, makeChunks("doc-1", 4))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 4, summary.Failed)
	require.Equal(t, 0, embedder.calls)
	require.False(t, summary.Persisted)
}

// cancellingEmbedder cancels the run on its first call and reports the
// abort, the way the embedding client surfaces ctx.Err for an in-flight call.
type cancellingEmbedder struct {
	cancel context.CancelFunc
	calls  int
}

func (e *cancellingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.cancel()
	return nil, ctx.Err()
}

func TestRun_CancelledDuringBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	embedder := &cancellingEmbedder{cancel: cancel}
	writer := &recordingWriter{}
	sink := &recordingSink{}
	l := New(embedder, writer, sink, 2)

	summary, err := l.Run(ctx, makeChunks("doc-1", 6))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, embedder.calls)
	require.Equal(t, 6, summary.Failed)
	require.Equal(t, 0, summary.Succeeded)
	require.False(t, summary.Persisted)
	require.Empty(t, writer.replaced)

	// The aborted in-flight batch is dead-lettered; the chunks that were
	// never submitted are not.
	require.Len(t, sink.records, 1)
	record := sink.records[0]
	require.Equal(t, 0, record.BatchIndex)
	require.Len(t, record.Entries, 2)
	require.Equal(t, "doc-1-0000", record.Entries[0].ChunkID)
}

func TestRun_EmptyInput(t *testing.T) {
	l := New(&scriptedEmbedder{dim: 8}, &recordingWriter{}, &recordingSink{}, 2)
	summary, err := l.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Total)
}
