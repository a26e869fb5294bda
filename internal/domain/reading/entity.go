package reading

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// Status values reported to clients.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// CachedAnalysis is an accepted reading remembered by content hash.
// Entries are created once and never mutated.
type CachedAnalysis struct {
	ContentHash string    `json:"content_hash"`
	Text        string    `json:"text"`
	AudioURL    string    `json:"audio_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnalysisResult is the transient outcome of one upstream call.
type AnalysisResult struct {
	Text    string
	Success bool
	// Reason names why the call ended the way it did, for logs and metrics.
	Reason string
}

// Upload is one image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Outcome is what the orchestrator hands back to the transport layer.
type Outcome struct {
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl"`
	Status   Status `json:"status"`
	Cached   bool   `json:"cached,omitempty"`

	// ProcessingTime is set on fresh successes only, even when it rounds to zero.
	ProcessingTime *float64 `json:"processingTime,omitempty"`
}

// ContentHash returns the lowercase hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// JPEGDataURL encodes JPEG bytes as a data URL for the provider.
func JPEGDataURL(jpegBytes []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
}
