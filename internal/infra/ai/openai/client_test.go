package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav7sc/mayalens/internal/domain/ai"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "🖐️ Overall Impression: a steady hand"}, "finish_reason": "stop"}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: timeout})
}

func TestAnalyzeSendsImageAndTemplate(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	}, time.Second)

	text, err := c.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "🖐️ Overall Impression: a steady hand", text)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 700, got["max_tokens"])
	assert.InDelta(t, 0.7, got["temperature"], 0.001)

	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "Hidden Talents")

	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "data:image/jpeg;base64,AAAA", image["image_url"].(map[string]any)["url"])
}

func TestAnalyzeClassifiesProviderRateLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}, time.Second)

	_, err := c.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestAnalyzeClassifiesTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := c.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	assert.ErrorIs(t, err, ai.ErrTimeout)
}

func TestAnalyzeClassifiesConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Options{APIKey: "sk-test", BaseURL: base + "/v1", Timeout: time.Second})
	_, err := c.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	assert.ErrorIs(t, err, ai.ErrConnection)
}

func TestAnalyzeOtherProviderErrorsAreUnclassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}, time.Second)

	_, err := c.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	require.Error(t, err)
	for _, sentinel := range []error{ai.ErrQuotaExceeded, ai.ErrTimeout, ai.ErrConnection} {
		assert.False(t, errors.Is(err, sentinel))
	}
}

func TestAnalyzeEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	}, time.Second)

	_, err := c.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	assert.Error(t, err)
}
