package ai

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/saurav7sc/mayalens/internal/domain/ai"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
	"github.com/saurav7sc/mayalens/internal/observability"
)

// Outcome reasons beyond the quality filter's reject reasons.
const (
	ReasonAccepted      = "accepted"
	ReasonTimeout       = "timeout"
	ReasonConnection    = "connection"
	ReasonRateLimited   = "rate_limited"
	ReasonUpstreamError = "upstream_error"
)

const (
	timeoutMessage     = "The cosmic energies are taking longer than expected. Please try again in a moment."
	connectionMessage  = "The connection to the mystic realm was lost. Please try again shortly."
	rateLimitedMessage = "Too many seekers are consulting the stars right now. Please try again in a few minutes."
)

type Service struct {
	client ai.Client
	filter reading.QualityFilter
}

func NewService(client ai.Client, filter reading.QualityFilter) *Service {
	return &Service{client: client, filter: filter}
}

// Read asks the provider for a reading and screens the answer. Failures never
// surface as errors; the result text is always something a client can display.
func (s *Service) Read(ctx context.Context, imageDataURL string) reading.AnalysisResult {
	logger := observability.FromContext(ctx)

	text, err := s.client.Analyze(ctx, imageDataURL)
	if err != nil {
		result := s.failure(err)
		logger.Warn("palm analysis failed", zap.String("reason", result.Reason), zap.Error(err))
		return result
	}

	verdict := s.filter.Check(text)
	if !verdict.Accepted {
		logger.Info("palm reading rejected",
			zap.String("reason", string(verdict.Reason)),
			zap.String("detail", verdict.Detail),
		)
		return reading.AnalysisResult{Text: s.filter.Fallback(), Reason: string(verdict.Reason)}
	}

	return reading.AnalysisResult{Text: text, Success: true, Reason: ReasonAccepted}
}

func (s *Service) failure(err error) reading.AnalysisResult {
	switch {
	case errors.Is(err, ai.ErrTimeout):
		return reading.AnalysisResult{Text: timeoutMessage, Reason: ReasonTimeout}
	case errors.Is(err, ai.ErrConnection):
		return reading.AnalysisResult{Text: connectionMessage, Reason: ReasonConnection}
	case errors.Is(err, ai.ErrQuotaExceeded):
		return reading.AnalysisResult{Text: rateLimitedMessage, Reason: ReasonRateLimited}
	default:
		return reading.AnalysisResult{Text: s.filter.Fallback(), Reason: ReasonUpstreamError}
	}
}

// IsUpstreamFailure reports whether reason came from a failed provider call
// rather than a rejected answer.
func IsUpstreamFailure(reason string) bool {
	switch reason {
	case ReasonTimeout, ReasonConnection, ReasonRateLimited, ReasonUpstreamError:
		return true
	}
	return false
}
