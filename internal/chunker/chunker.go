package chunker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ClarenceZzz/docpipe/internal/ai"
	"github.com/ClarenceZzz/docpipe/internal/config"
	"github.com/ClarenceZzz/docpipe/internal/model"
	"github.com/ClarenceZzz/docpipe/internal/splitter"
)

const sectionTitlePrompt = `Summarize the following text block into a short section label of at most 10 words.
Return ONLY the label, with no quotes and no extra commentary.

TEXT:
%s`

// Chunker turns one document's cleaned text into an ordered sequence of
// retrieval-sized chunks: structure-first splitting, length-based splitting
// for oversized sections, a merge pass for fragments, and section-title
// backfill through a language-model collaborator.
type Chunker struct {
	semantic     *splitter.Semantic
	recursive    *splitter.Recursive
	chunkSize    int
	minChunkSize int
	titler       ai.IGenerator
	titleCache   *expirable.LRU[string, string]
	titleTimeout time.Duration
}

func New(cfg config.ChunkerConfig, titler ai.IGenerator, titleTimeout time.Duration) (*Chunker, error) {
	recursive, err := splitter.NewRecursive(cfg.ChunkSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	return &Chunker{
		semantic:     splitter.NewSemantic(),
		recursive:    recursive,
		chunkSize:    cfg.ChunkSize,
		minChunkSize: cfg.MinChunkSize,
		titler:       titler,
		titleCache:   expirable.NewLRU[string, string](10000, nil, 2*time.Hour),
		titleTimeout: titleTimeout,
	}, nil
}

// candidate is a chunk before final index assignment. section carries the
// heading-derived label when the candidate opens a section.
type candidate struct {
	content string
	section string
}

func (c *Chunker) Chunk(ctx context.Context, text string, documentID string, base model.Metadata) ([]model.Chunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", documentID))
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sections := c.semantic.Split(text)
	logger.Info("semantic split done", zap.Int("sections", len(sections)))

	var candidates []candidate
	for _, section := range sections {
		candidates = append(candidates, c.sectionCandidates(section)...)
	}
	candidates = c.mergeSmall(candidates)

	// Index and ID assignment happens strictly after merging so indices
	// stay consecutive.
	chunks := make([]model.Chunk, 0, len(candidates))
	for index, cand := range candidates {
		label := cand.section
		if label == "" {
			label = c.sectionTitle(ctx, cand.content)
		}
		chunks = append(chunks, model.Chunk{
			DocumentID: documentID,
			ChunkID:    fmt.Sprintf("%s-%04d", documentID, index),
			Content:    cand.content,
			Metadata: model.Metadata{
				Title:      base.Title,
				Section:    label,
				ChunkIndex: index,
			},
		})
	}
	logger.Info("chunking completed", zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// sectionCandidates renders one section into candidates. A section that fits
// the chunk size stays whole; an oversized one is windowed, and only the
// first window keeps the heading-derived label.
func (c *Chunker) sectionCandidates(section splitter.Section) []candidate {
	content := section.Body
	if section.Heading != "" {
		if section.Body != "" {
			content = "## " + section.Heading + "\n" + section.Body
		} else {
			content = "## " + section.Heading
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if runeLen(content) <= c.chunkSize {
		return []candidate{{content: content, section: section.Heading}}
	}
	var out []candidate
	for i, segment := range c.recursive.Split(content) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		label := ""
		if i == 0 {
			label = section.Heading
		}
		out = append(out, candidate{content: segment, section: label})
	}
	return out
}

// mergeSmall concatenates candidates shorter than the minimum length into
// their successors, left to right, as long as the result stays within the
// chunk size. The merged unit keeps the first candidate's section label.
func (c *Chunker) mergeSmall(candidates []candidate) []candidate {
	if c.minChunkSize <= 0 || len(candidates) < 2 {
		return candidates
	}
	merged := make([]candidate, 0, len(candidates))
	i := 0
	for i < len(candidates) {
		cur := candidates[i]
		next := i + 1
		for next < len(candidates) && runeLen(cur.content) < c.minChunkSize {
			combined := cur.content + "\n" + candidates[next].content
			if runeLen(combined) > c.chunkSize {
				break
			}
			cur.content = combined
			next++
		}
		merged = append(merged, cur)
		i = next
	}
	return merged
}

// sectionTitle asks the summarizer collaborator for a short label. Failures
// degrade to an empty label and never abort the chunk assembly loop.
func (c *Chunker) sectionTitle(ctx context.Context, content string) string {
	if c.titler == nil {
		return ""
	}
	hash := sha256.Sum256([]byte(content))
	key := hex.EncodeToString(hash[:])
	if cached, ok := c.titleCache.Get(key); ok {
		return cached
	}

	callCtx := ctx
	if c.titleTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.titleTimeout)
		defer cancel()
	}
	result, err := c.titler.Generate(callCtx, fmt.Sprintf(sectionTitlePrompt, content))
	if err != nil {
		logutil.GetLogger(ctx).Warn("section title generation failed", zap.Error(err))
		return ""
	}
	label := strings.TrimSpace(result)
	if idx := strings.IndexByte(label, '\n'); idx >= 0 {
		label = strings.TrimSpace(label[:idx])
	}
	c.titleCache.Add(key, label)
	return label
}

func runeLen(s string) int {
	return len([]rune(s))
}
