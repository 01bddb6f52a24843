package model

// IngestRecord tracks the last successful load of a document so that an
// unchanged re-run can be skipped.
type IngestRecord struct {
	DocumentID  string
	ContentHash string
	ChunkCount  int
	Mtime       int64
}
