package model

import "errors"

// Error taxonomy shared across the pipeline. Stages wrap these with
// fmt.Errorf("...: %w", ...) and callers match with errors.Is.
var (
	// ErrDecode marks an unreadable or corrupt image. User-correctable.
	ErrDecode = errors.New("image decode failed")
	// ErrEmbedding marks a model or runtime failure while embedding.
	ErrEmbedding = errors.New("embedding failed")
	// ErrBackend marks a remote generative service failure.
	ErrBackend = errors.New("generative backend failed")
	// ErrParse marks generative output that is not a structured verdict.
	ErrParse = errors.New("malformed generative output")
	// ErrPersistence marks an unavailable or failing storage layer.
	ErrPersistence = errors.New("persistence failed")
	// ErrUnsupportedBackend marks a request for an unknown backend identity.
	ErrUnsupportedBackend = errors.New("unsupported backend")
)
