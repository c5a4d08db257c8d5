package domain

import "errors"

var (
	// ErrUpstream reports a failed listing call: a non-success status or a body
	// that could not be decoded.
	ErrUpstream = errors.New("upstream listing failed")

	// ErrNotFound reports a name that is absent from the current index.
	ErrNotFound = errors.New("repository not found")

	// ErrStartupUnavailable reports that the index was never built and the
	// on-demand build failed.
	ErrStartupUnavailable = errors.New("repository index unavailable")
)
