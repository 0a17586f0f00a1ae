package internal

import "errors"

var (
	// Ingestion.
	ErrSourceUnavailable = errors.New("corpus source unavailable")
	ErrCorpusEmpty       = errors.New("corpus contains no documents")

	// Remote services.
	ErrRateLimited       = errors.New("rate limited by remote service")
	ErrTimeout           = errors.New("remote call timed out")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrGenerationService = errors.New("generation service error")

	// Index lifecycle.
	ErrIndexNotReady     = errors.New("index not ready")
	ErrIndexAlreadyBuilt = errors.New("index already built")

	// Orchestrator wrapper. Every failure surfaced to the chat boundary
	// is wrapped in this, with the original kind preserved as the cause.
	ErrAnswerFailed = errors.New("answer failed")
)

// Retryable reports whether an error should be retried locally with backoff.
// Everything else propagates unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
