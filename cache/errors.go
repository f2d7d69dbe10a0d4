package cache

import "errors"

// Sentinel errors for cache operations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrDecodeFailed indicates no decoder strategy could parse a source
	// file. It is returned only after every strategy in the chain has been
	// tried.
	ErrDecodeFailed = errors.New("no decoder could parse source file")

	// ErrSourceNotFound indicates the source file does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrOutsideStore indicates a delete was requested for a file that does
	// not live in the cache's backing store.
	ErrOutsideStore = errors.New("file is outside the cache store")
)
