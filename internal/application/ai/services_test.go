package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saurav7sc/mayalens/internal/domain/ai"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
)

type stubClient struct {
	text string
	err  error
}

func (s stubClient) Analyze(context.Context, string) (string, error) { return s.text, s.err }

const goodReading = `🖐️ Overall Impression: Your hand shows a balanced nature.

❤️ Relationships & Emotions: The heart line curves gently upward.

💼 Career & Wealth: A strong fate line points to steady progress.

🧠 Personality Traits: The head line runs long and clear.

✨ Hidden Talents: A raised mount of Apollo hints at creative gifts.`

func TestReadAcceptsWellFormedReading(t *testing.T) {
	svc := NewService(stubClient{text: goodReading}, reading.DefaultQualityFilter())

	res := svc.Read(context.Background(), "data:image/jpeg;base64,AA")
	assert.True(t, res.Success)
	assert.Equal(t, goodReading, res.Text)
	assert.Equal(t, ReasonAccepted, res.Reason)
}

func TestReadMapsClassifiedFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		text   string
		reason string
	}{
		{name: "timeout", err: fmt.Errorf("%w: deadline", ai.ErrTimeout), text: timeoutMessage, reason: ReasonTimeout},
		{name: "connection", err: fmt.Errorf("%w: refused", ai.ErrConnection), text: connectionMessage, reason: ReasonConnection},
		{name: "quota", err: fmt.Errorf("%w: 429", ai.ErrQuotaExceeded), text: rateLimitedMessage, reason: ReasonRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(stubClient{err: tt.err}, reading.DefaultQualityFilter())
			res := svc.Read(context.Background(), "")
			assert.False(t, res.Success)
			assert.Equal(t, tt.text, res.Text)
			assert.Equal(t, tt.reason, res.Reason)
			assert.True(t, IsUpstreamFailure(res.Reason))
		})
	}
}

func TestReadUnclassifiedFailureUsesFallback(t *testing.T) {
	svc := NewService(stubClient{err: errors.New("boom")}, reading.DefaultQualityFilter())

	res := svc.Read(context.Background(), "")
	assert.False(t, res.Success)
	assert.Contains(t, reading.DefaultFallbacks, res.Text)
	assert.Equal(t, ReasonUpstreamError, res.Reason)
}

func TestReadRejectedAnswerUsesFallback(t *testing.T) {
	svc := NewService(stubClient{text: "I'm sorry, but I cannot analyze this image of a palm in any detail at all."}, reading.DefaultQualityFilter())

	res := svc.Read(context.Background(), "")
	assert.False(t, res.Success)
	assert.Contains(t, reading.DefaultFallbacks, res.Text)
	assert.Equal(t, string(reading.ReasonRefusal), res.Reason)
	assert.False(t, IsUpstreamFailure(res.Reason))
}

func TestReadUsesConfiguredFallbacks(t *testing.T) {
	filter := reading.DefaultQualityFilter().Merge(reading.QualityFilter{Fallbacks: []string{"try again"}})
	svc := NewService(stubClient{text: "short"}, filter)

	res := svc.Read(context.Background(), "")
	assert.Equal(t, "try again", res.Text)
	assert.Equal(t, string(reading.ReasonTooShort), res.Reason)
}
