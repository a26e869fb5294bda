package reading

import (
	"context"
	"image"
	"io"
)

// Cache remembers accepted readings by content hash.
type Cache interface {
	Get(hash string) (CachedAnalysis, bool)
	Set(entry CachedAnalysis)
	Len() int
}

// Reader turns an image data URL into an analysis result.
type Reader interface {
	Read(ctx context.Context, imageDataURL string) AnalysisResult
}

// Normalizer validates uploads and prepares them for the provider.
type Normalizer interface {
	ValidateUpload(filename, contentType string, data []byte) (image.Image, error)
	Normalize(src image.Image) ([]byte, error)
}

// Narrator converts reading text to a playable audio URL, or "" when none is available.
type Narrator interface {
	Narrate(ctx context.Context, text string) string
}

// AudioStore holds generated audio artifacts.
type AudioStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) bool
	Size(ctx context.Context) (int64, error)
}
