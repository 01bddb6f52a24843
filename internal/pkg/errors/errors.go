package errors

import "errors"

// Pipeline error taxonomy. Sentinels are matched with errors.Is so callers
// can branch on the class while keeping the wrapped cause.
var (
	// ErrInvalidConfiguration marks malformed splitter or client parameters.
	// Fatal, raised before any processing starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrResponseShape marks a structurally invalid response from the
	// embedding or summarization service. Retryable.
	ErrResponseShape = errors.New("response shape mismatch")
	// ErrEmbeddingUnavailable marks a batch whose retry budget is exhausted.
	// Non-fatal at the run level; the batch is dead-lettered.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrTransactionFailure marks a failed replace transaction. Fatal for
	// the document; the previous generation of rows stays intact.
	ErrTransactionFailure = errors.New("transaction failure")
	// ErrSanityCheck marks a post-write verification finding. Reported,
	// never undoes the write.
	ErrSanityCheck = errors.New("sanity check failed")

	ErrNotFound = errors.New("not found")
)

func IsEmbeddingUnavailable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}

func IsResponseShape(err error) bool {
	return errors.Is(err, ErrResponseShape)
}

func IsSanityCheck(err error) bool {
	return errors.Is(err, ErrSanityCheck)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
