package ai

import "context"

// Client sends one image, encoded as a data URL, to a multimodal model and
// returns the raw completion text.
type Client interface {
	Analyze(ctx context.Context, imageDataURL string) (string, error)
}
