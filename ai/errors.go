package ai

import "errors"

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("ai config: API key is required")

	// ErrMissingHost is returned when a service host is empty.
	ErrMissingHost = errors.New("ai config: host is required")

	// ErrMissingModel is returned when a model identifier is empty.
	ErrMissingModel = errors.New("ai config: model is required")

	// ErrInvalidMaxTokens is returned when MaxTokens is not positive.
	ErrInvalidMaxTokens = errors.New("ai config: MaxTokens must be positive")
)
