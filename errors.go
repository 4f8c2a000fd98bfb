package mailvault

import "errors"

var (
	// ErrEmptyPlainText is returned when an ingest item carries no body text.
	ErrEmptyPlainText = errors.New("mailvault: plain_text is empty")

	// ErrInvalidInput is returned for malformed or out-of-contract request fields.
	ErrInvalidInput = errors.New("mailvault: invalid input")

	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("mailvault: document not found")

	// ErrEmbeddingFailed is returned when embedding generation fails after retries.
	ErrEmbeddingFailed = errors.New("mailvault: embedding generation failed")

	// ErrDimensionMismatch is returned when a provider yields vectors whose
	// length differs from the configured dimension. Never retried.
	ErrDimensionMismatch = errors.New("mailvault: embedding dimension mismatch")

	// ErrProviderAuth is returned when the embedding or chat provider
	// rejects the configured credentials.
	ErrProviderAuth = errors.New("mailvault: provider authentication failed")
)
