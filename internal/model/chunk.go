package model

// EmbeddingDimension is the fixed dimensionality of chunk embeddings.
const EmbeddingDimension = 1536

// Metadata carries the queryable attributes attached to every chunk.
// Title is inherited verbatim from the owning document and is identical
// across all chunks of that document.
type Metadata struct {
	Title      string `json:"title"`
	Section    string `json:"section"`
	ChunkIndex int    `json:"chunk_index"`
}

// Chunk is the unit of retrieval: a bounded span of document text plus
// metadata, optionally carrying its embedding once the load stage ran.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	ChunkID    string    `json:"chunk_id"`
	Content    string    `json:"content"`
	Metadata   Metadata  `json:"metadata"`
	Embedding  []float32 `json:"embedding,omitempty"`
}
