package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appai "github.com/saurav7sc/mayalens/internal/application/ai"
	"github.com/saurav7sc/mayalens/internal/application/palm"
	"github.com/saurav7sc/mayalens/internal/domain/ai"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
	"github.com/saurav7sc/mayalens/internal/infra/cache"
	"github.com/saurav7sc/mayalens/internal/infra/imaging"
	"github.com/saurav7sc/mayalens/internal/infra/storage"
	"github.com/saurav7sc/mayalens/internal/infra/tts"
	"github.com/saurav7sc/mayalens/internal/middleware"
)

const goodReading = `🖐️ Overall Impression: Your hand is broad and steady with clear lines.

❤️ Relationships & Emotions: The heart line curves upward toward the index finger.

💼 Career & Wealth: A deep fate line promises steady progress.

🧠 Personality Traits: The long head line marks a careful thinker.

✨ Hidden Talents: The mount of Apollo hints at creative gifts.`

type stubAI struct {
	calls atomic.Int32
	text  string
	err   error
}

func (s *stubAI) Analyze(context.Context, string) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

type harness struct {
	handler http.Handler
	ai      *stubAI
	audio   *storage.Local
	metrics *middleware.Metrics
}

func newHarness(t *testing.T, client *stubAI, opts Options) *harness {
	t.Helper()
	audio, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	memory := cache.NewMemory(time.Hour, 0, nil)
	metrics := middleware.NewMetrics()
	reader := appai.NewService(client, reading.DefaultQualityFilter())
	svc := palm.NewService(memory, imaging.NewNormalizer(0, 0, 0), reader, tts.Silent{}, palm.Options{Observer: metrics})

	h := NewRouter(Deps{
		Palm:    svc,
		Audio:   audio,
		Cache:   memory,
		Limiter: middleware.NewSlidingWindow(10, time.Minute, nil),
		Metrics: metrics,
		Logger:  zap.NewNop(),
	}, opts)
	return &harness{handler: h, ai: client, audio: audio, metrics: metrics}
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 12))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-palm", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "198.51.100.4:40000"
	return req
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAnalyzePalmServesRepeatFromCache(t *testing.T) {
	h := newHarness(t, &stubAI{text: goodReading}, Options{})
	data := pngData(t)

	rec := h.do(uploadRequest(t, "image", "palm.png", "image/png", data))
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeOutcome(t, rec)
	assert.Equal(t, "success", first["status"])
	assert.Equal(t, goodReading, first["text"])
	assert.Equal(t, "", first["audioUrl"])
	assert.Nil(t, first["cached"])
	assert.Contains(t, first, "processingTime")

	rec = h.do(uploadRequest(t, "image", "palm.png", "image/png", data))
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeOutcome(t, rec)
	assert.Equal(t, true, second["cached"])
	assert.Equal(t, goodReading, second["text"])
	assert.NotContains(t, second, "processingTime")

	assert.Equal(t, int32(1), h.ai.calls.Load())
	assert.Equal(t, uint64(1), h.metrics.CacheHits.Load())
}

func TestAnalyzePalmRateLimitsEleventhRequest(t *testing.T) {
	h := newHarness(t, &stubAI{text: goodReading}, Options{})
	data := pngData(t)

	for i := 0; i < 10; i++ {
		rec := h.do(uploadRequest(t, "image", "palm.png", "image/png", data))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	rec := h.do(uploadRequest(t, "image", "palm.png", "image/png", data))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// health is not rate limited
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.4:40000"
	assert.Equal(t, http.StatusOK, h.do(req).Code)
}

func TestAnalyzePalmRejectsHEICWithoutUpstreamCall(t *testing.T) {
	h := newHarness(t, &stubAI{text: goodReading}, Options{})

	rec := h.do(uploadRequest(t, "image", "IMG_0001.HEIC", "image/heic", []byte("....ftypheic")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["detail"], "HEIC format is not supported")
	assert.Zero(t, h.ai.calls.Load())
}

func TestAnalyzePalmRejectsNonImage(t *testing.T) {
	h := newHarness(t, &stubAI{text: goodReading}, Options{})

	rec := h.do(uploadRequest(t, "image", "palm.jpg", "image/jpeg", []byte("definitely not a jpeg")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid image format")
	assert.Zero(t, h.ai.calls.Load())
}

func TestAnalyzePalmMissingField(t *testing.T) {
	h := newHarness(t, &stubAI{text: goodReading}, Options{})

	rec := h.do(uploadRequest(t, "photo", "palm.png", "image/png", pngData(t)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")
}

func TestAnalyzePalmUploadTooLarge(t *testing.T) {
	h := newHarness(t, &stubAI{text: goodReading}, Options{MaxUploadBytes: 256})

	rec := h.do(uploadRequest(t, "image", "palm.png", "image/png", bytes.Repeat([]byte{1}, 4096)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.ai.calls.Load())
}

func TestAnalyzePalmUpstreamFailureIsStatusError(t *testing.T) {
	h := newHarness(t, &stubAI{err: ai.ErrTimeout}, Options{})

	rec := h.do(uploadRequest(t, "image", "palm.png", "image/png", pngData(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeOutcome(t, rec)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "The cosmic energies are taking longer than expected. Please try again in a moment.", out["text"])
	assert.Equal(t, "", out["audioUrl"])
	assert.Equal(t, uint64(1), h.metrics.UpstreamFailures.Load())
}

func TestAnalyzePalmRejectedReadingUsesFallback(t *testing.T) {
	h := newHarness(t, &stubAI{text: "As an AI, I cannot read palms from images like this one."}, Options{})

	rec := h.do(uploadRequest(t, "image", "palm.png", "image/png", pngData(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeOutcome(t, rec)
	assert.Equal(t, "error", out["status"])
	assert.Contains(t, reading.DefaultFallbacks, out["text"])
}

func TestAudioEndpoint(t *testing.T) {
	h := newHarness(t, &stubAI{}, Options{})
	require.NoError(t, h.audio.Put(context.Background(), "audio_abc123.mp3", []byte("ID3data")))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/audio/cached_abc123.mp3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3data", rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/audio/cached_missing.mp3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Audio file not found"}`, rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/audio/notes.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndRoot(t *testing.T) {
	h := newHarness(t, &stubAI{}, Options{
		Services: map[string]middleware.CredentialCheck{
			"openai":     func() bool { return true },
			"elevenlabs": func() bool { return false },
		},
	})
	require.NoError(t, h.audio.Put(context.Background(), "audio_a.mp3", bytes.Repeat([]byte{0}, 1<<20)))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health middleware.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, APIVersion, health.APIVersion)
	assert.Equal(t, "ok", health.Services["openai"])
	assert.Equal(t, "missing", health.Services["elevenlabs"])
	assert.Equal(t, 1.0, health.Cache.CacheDirSizeMB)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Palm Reading API","version":"1.0.0","endpoints":{"analyze":"/api/analyze-palm","health":"/health"}}`, rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "requests_total")
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, &stubAI{}, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze-palm", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := h.do(req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
