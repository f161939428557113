package correlate

import "errors"

var (
	// ErrNotFound means the requested article is not in the store.
	ErrNotFound = errors.New("article not found")

	// ErrInvalidArticle means the submitted article is missing required
	// fields and cannot be ingested.
	ErrInvalidArticle = errors.New("invalid article")
)
