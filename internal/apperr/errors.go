// Package apperr defines the sentinel error kinds shared across the engine
// and translated at the transport boundary.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNotCached        = errors.New("not cached")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrRateLimited      = errors.New("rate limited")
	ErrFetch            = errors.New("artifact fetch failed")
	ErrParse            = errors.New("artifact parse failed")
	ErrAmbiguous        = errors.New("ambiguous match")
)
