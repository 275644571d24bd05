package pubmed

import "errors"

var (
	// ErrInvalidQuery is returned when there is nothing usable to search for.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRetrievalFailed wraps id-lookup and summary failures. It aborts the search.
	ErrRetrievalFailed = errors.New("failed to search PubMed")

	// ErrAbstractUnavailable marks a per-paper efetch failure. It never leaves Search.
	ErrAbstractUnavailable = errors.New("abstract unavailable")
)
