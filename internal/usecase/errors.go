package usecase

import "errors"

var (
	// ErrUniverse means the symbol list for a batch run could not be resolved.
	ErrUniverse = errors.New("resolve symbol universe")
	// ErrPersistence wraps a failed forecast write.
	ErrPersistence = errors.New("persist forecast")
	// ErrNotFound is returned for symbols with no stored predictions.
	ErrNotFound = errors.New("not found")
)
