package model

// DeadLetterEntry is one chunk of a permanently failed batch, keyed by the
// chunk ID it carried when embedding was attempted. Indices embedded in the
// ID are preserved as assigned by the chunker, for traceability.
type DeadLetterEntry struct {
	ChunkID string
	Content string
}

// DeadLetterRecord is the persisted representation of a batch whose
// embedding call exhausted its retry budget.
type DeadLetterRecord struct {
	DocumentID string
	BatchIndex int
	Reason     string
	Entries    []DeadLetterEntry
}
