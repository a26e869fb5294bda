package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/saurav7sc/mayalens/internal/domain/reading"
	"github.com/saurav7sc/mayalens/internal/infra/storage"
	"github.com/saurav7sc/mayalens/internal/observability"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"
	DefaultModelID = "eleven_multilingual_v2"
)

// Options for the ElevenLabs narrator.
type Options struct {
	APIKey    string
	VoiceID   string
	ModelID   string
	BaseURL   string
	Timeout   time.Duration
	RetryMax  int
	RetryWait time.Duration
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ElevenLabs renders readings to MP3 and keeps them in an audio store keyed
// by the hash of the text, so the same reading is only synthesized once.
type ElevenLabs struct {
	inner   *retryablehttp.Client
	store   reading.AudioStore
	apiKey  string
	voiceID string
	modelID string
	baseURL string
}

func NewElevenLabs(opts Options, store reading.AudioStore, logger *zap.Logger) *ElevenLabs {
	r := retryablehttp.NewClient()
	r.RetryMax = 2
	if opts.RetryMax > 0 {
		r.RetryMax = opts.RetryMax
	}
	if opts.RetryWait > 0 {
		r.RetryWaitMin = opts.RetryWait
		r.RetryWaitMax = 4 * opts.RetryWait
	}
	r.HTTPClient.Timeout = 30 * time.Second
	if opts.Timeout > 0 {
		r.HTTPClient.Timeout = opts.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r.Logger = leveledLogger{logger.Named("elevenlabs")}

	e := &ElevenLabs{
		inner:   r,
		store:   store,
		apiKey:  opts.APIKey,
		voiceID: opts.VoiceID,
		modelID: opts.ModelID,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
	if e.voiceID == "" {
		e.voiceID = DefaultVoiceID
	}
	if e.modelID == "" {
		e.modelID = DefaultModelID
	}
	if e.baseURL == "" {
		e.baseURL = DefaultBaseURL
	}
	return e
}

// Narrate returns the audio URL for text, or "" when audio could not be produced.
func (e *ElevenLabs) Narrate(ctx context.Context, text string) string {
	logger := observability.FromContext(ctx)
	if e.apiKey == "" || strings.TrimSpace(text) == "" {
		return ""
	}

	hash := reading.ContentHash([]byte(text))
	key := storage.AudioKey(hash)
	if e.store.Exists(ctx, key) {
		return storage.AudioURL(hash)
	}

	audio, err := e.synthesize(ctx, text)
	if err != nil {
		logger.Warn("speech synthesis failed", zap.Error(err))
		return ""
	}
	if err := e.store.Put(ctx, key, audio); err != nil {
		logger.Warn("failed to store audio", zap.String("key", key), zap.Error(err))
		return ""
	}
	return storage.AudioURL(hash)
}

func (e *ElevenLabs) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       e.modelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.inner.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text-to-speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("text-to-speech returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("text-to-speech returned empty audio")
	}
	return audio, nil
}

// Silent is used when no speech provider is configured.
type Silent struct{}

func (Silent) Narrate(context.Context, string) string { return "" }

// leveledLogger routes retryablehttp's logs through zap.
type leveledLogger struct {
	l *zap.Logger
}

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.l.Sugar().Errorw(msg, kv...) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.l.Sugar().Warnw(msg, kv...) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.l.Sugar().Debugw(msg, kv...) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.l.Sugar().Debugw(msg, kv...) }
