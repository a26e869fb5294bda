package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrTimeout indicates the provider did not answer before the call deadline.
var ErrTimeout = errors.New("ai request timed out")

// ErrConnection indicates the provider could not be reached at all.
var ErrConnection = errors.New("ai connection failed")
