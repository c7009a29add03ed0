package core

import "errors"

var (
	ErrInvalidURL     = errors.New("invalid YouTube URL")
	ErrEmptyInput     = errors.New("empty input")
	ErrNoTranscript   = errors.New("transcript not available")
	ErrNotFound       = errors.New("not found")
	ErrMissingConfig  = errors.New("missing configuration")
	ErrNoSimilarVideo = errors.New("No similar video found.")
)

// Error kinds reported in the "error" field of 500 responses.
const (
	KindConfig    = "configuration error"
	KindEmbedding = "embedding error"
	KindDatabase  = "database error"
	KindYouTube   = "youtube api error"
	KindInternal  = "internal error"
)

type kindError struct {
	kind string
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// WithKind tags err with the subsystem that produced it. A nil err stays nil.
func WithKind(kind string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the outermost kind attached to err. Missing configuration
// always reports as a configuration error.
func KindOf(err error) string {
	if errors.Is(err, ErrMissingConfig) {
		return KindConfig
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}
