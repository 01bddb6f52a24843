package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
)

type fakeEmbedder struct {
	calls    int
	failures int
	vectors  func(texts []string) [][]float32
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.vectors(texts), nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func identityVectors(dim int) func(texts []string) [][]float32 {
	return func(texts []string) [][]float32 {
		out := make([][]float32, len(texts))
		for i := range texts {
			vec := make([]float32, dim)
			vec[i%dim] = 1
			out[i] = vec
		}
		return out
	}
}

func TestClientEmbed_AlignedResult(t *testing.T) {
	fake := &fakeEmbedder{vectors: identityVectors(8)}
	client, err := NewClient(fake, Options{Dimensions: 8, MaxAttempts: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	require.Equal(t, 1, fake.calls)
}

func TestClientEmbed_RetriesTransientFailures(t *testing.T) {
	fake := &fakeEmbedder{failures: 2, vectors: identityVectors(4)}
	client, err := NewClient(fake, Options{Dimensions: 4, MaxAttempts: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Equal(t, 3, fake.calls)
}

func TestClientEmbed_ExhaustionIsUnavailable(t *testing.T) {
	fake := &fakeEmbedder{failures: 10, vectors: identityVectors(4)}
	client, err := NewClient(fake, Options{Dimensions: 4, MaxAttempts: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a"})
	require.ErrorIs(t, err, appErr.ErrEmbeddingUnavailable)
	require.Equal(t, 3, fake.calls)
}

func TestClientEmbed_CountMismatchIsShapeError(t *testing.T) {
	fake := &fakeEmbedder{vectors: func(texts []string) [][]float32 {
		return [][]float32{make([]float32, 4)}
	}}
	client, err := NewClient(fake, Options{Dimensions: 4, MaxAttempts: 2, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, appErr.ErrEmbeddingUnavailable)
	require.ErrorIs(t, err, appErr.ErrResponseShape)
	require.Equal(t, 2, fake.calls)
}

func TestClientEmbed_WrongDimensionIsShapeError(t *testing.T) {
	fake := &fakeEmbedder{vectors: identityVectors(4)}
	client, err := NewClient(fake, Options{Dimensions: 16, MaxAttempts: 1, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a"})
	require.ErrorIs(t, err, appErr.ErrResponseShape)
}

func TestClientEmbed_EmptyInput(t *testing.T) {
	fake := &fakeEmbedder{vectors: identityVectors(4)}
	client, err := NewClient(fake, Options{Dimensions: 4})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
	require.Equal(t, 0, fake.calls)
}
