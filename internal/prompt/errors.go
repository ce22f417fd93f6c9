package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrNoClusters is returned when the catalog offers nothing to choose from.
	ErrNoClusters = errors.New("prompt: catalog has no clusters")
)
