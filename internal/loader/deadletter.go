package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClarenceZzz/docpipe/internal/filestore"
	"github.com/ClarenceZzz/docpipe/internal/model"
)

// DeadLetterSink persists failed batches as one artifact per batch so the
// raw content can be reprocessed later. Writes are best effort; callers log
// a sink failure but never let it mask the embedding failure it records.
type DeadLetterSink struct {
	store filestore.Store
}

func NewDeadLetterSink(store filestore.Store) *DeadLetterSink {
	return &DeadLetterSink{store: store}
}

func (s *DeadLetterSink) Write(ctx context.Context, record model.DeadLetterRecord) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# document: %s\n", record.DocumentID)
	fmt.Fprintf(&sb, "# batch: %d\n", record.BatchIndex)
	fmt.Fprintf(&sb, "# failure: %s\n", record.Reason)
	for _, entry := range record.Entries {
		fmt.Fprintf(&sb, "[%s] %s\n", entry.ChunkID, entry.Content)
	}
	key := fmt.Sprintf("%s-batch-%04d.deadletter.txt", record.DocumentID, record.BatchIndex)
	return s.store.Save(ctx, key, []byte(sb.String()))
}
