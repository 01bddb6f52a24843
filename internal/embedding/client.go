package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ClarenceZzz/docpipe/internal/ai"
	appErr "github.com/ClarenceZzz/docpipe/internal/pkg/errors"
	"github.com/ClarenceZzz/docpipe/internal/pkg/retry"
)

type Options struct {
	Dimensions  int
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// Client turns batches of chunk text into vectors through an embedding
// provider, with bounded retry and strict batch-alignment checks.
type Client struct {
	embedder ai.IEmbedder
	opts     Options
}

func NewClient(embedder ai.IEmbedder, opts Options) (*Client, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", appErr.ErrInvalidConfiguration)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{embedder: embedder, opts: opts}, nil
}

// Embed returns one vector per input text, in input order. A response with
// the wrong vector count or dimensionality is retried like any transient
// failure; once the attempt budget is spent the error wraps
// ErrEmbeddingUnavailable so the caller can route the batch to the
// dead-letter sink instead of aborting the run.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx).With(
		zap.Int("batch_size", len(texts)),
		zap.String("model", c.embedder.ModelName()),
	)

	var vectors [][]float32
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		result, err := c.embedder.EmbedBatch(callCtx, texts)
		if err != nil {
			return err
		}
		if len(result) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", appErr.ErrResponseShape, len(result), len(texts))
		}
		for i, vec := range result {
			if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
				return fmt.Errorf("%w: vector %d has dimension %d, want %d", appErr.ErrResponseShape, i, len(vec), c.opts.Dimensions)
			}
		}
		vectors = result
		return nil
	}

	err := retry.Do(ctx, op, c.opts.MaxAttempts, c.opts.RetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("embedding call aborted", zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
		logger.Error("embedding call failed", zap.Int("attempts", c.opts.MaxAttempts), zap.Error(err))
		return nil, fmt.Errorf("%w after %d attempts: %w", appErr.ErrEmbeddingUnavailable, c.opts.MaxAttempts, err)
	}
	logger.Info("embedding call succeeded")
	return vectors, nil
}
