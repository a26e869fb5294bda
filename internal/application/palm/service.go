package palm

import (
	"context"
	"image"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saurav7sc/mayalens/internal/application"
	appai "github.com/saurav7sc/mayalens/internal/application/ai"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
	"github.com/saurav7sc/mayalens/internal/observability"
)

// Observer is told how each reading ended.
type Observer interface {
	CacheHit()
	ReadingAccepted()
	ReadingRejected()
	UpstreamFailed()
}

type nopObserver struct{}

func (nopObserver) CacheHit()        {}
func (nopObserver) ReadingAccepted() {}
func (nopObserver) ReadingRejected() {}
func (nopObserver) UpstreamFailed()  {}

type Options struct {
	Clock    application.Clock
	Observer Observer
	// DedupeInFlight collapses concurrent misses for the same image onto one upstream call.
	DedupeInFlight bool
}

// Service runs one palm reading request end to end.
type Service struct {
	cache      reading.Cache
	normalizer reading.Normalizer
	reader     reading.Reader
	narrator   reading.Narrator
	clock      application.Clock
	observer   Observer
	dedupe     bool
	group      singleflight.Group
}

func NewService(cache reading.Cache, normalizer reading.Normalizer, reader reading.Reader, narrator reading.Narrator, opts Options) *Service {
	s := &Service{
		cache:      cache,
		normalizer: normalizer,
		reader:     reader,
		narrator:   narrator,
		clock:      opts.Clock,
		observer:   opts.Observer,
		dedupe:     opts.DedupeInFlight,
	}
	if s.clock == nil {
		s.clock = application.SystemClock{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// Analyze validates the upload, serves it from the cache when the same bytes
// were read before, and otherwise asks the provider. Only validation failures
// are returned as errors; provider trouble is reported in the outcome.
func (s *Service) Analyze(ctx context.Context, up reading.Upload) (reading.Outcome, error) {
	start := s.clock.Now()

	img, err := s.normalizer.ValidateUpload(up.Filename, up.ContentType, up.Data)
	if err != nil {
		return reading.Outcome{}, err
	}

	hash := reading.ContentHash(up.Data)
	logger := observability.FromContext(ctx).With(zap.String("content_hash", hash))
	ctx = observability.WithLogger(ctx, logger)

	if hit, ok := s.cache.Get(hash); ok {
		s.observer.CacheHit()
		logger.Info("palm reading served from cache")
		return reading.Outcome{
			Text:     hit.Text,
			AudioURL: hit.AudioURL,
			Status:   reading.StatusSuccess,
			Cached:   true,
		}, nil
	}

	if !s.dedupe {
		return s.fresh(ctx, hash, up.Data, img, start), nil
	}
	v, _, shared := s.group.Do(hash, func() (interface{}, error) {
		// a flight that finished between our lookup and Do has already filled the cache
		if hit, ok := s.cache.Get(hash); ok {
			s.observer.CacheHit()
			return reading.Outcome{Text: hit.Text, AudioURL: hit.AudioURL, Status: reading.StatusSuccess, Cached: true}, nil
		}
		return s.fresh(ctx, hash, up.Data, img, start), nil
	})
	if shared {
		logger.Debug("joined in-flight palm reading")
	}
	return v.(reading.Outcome), nil
}

// fresh performs the upstream part of a reading. It runs on a context detached
// from the client so a dropped connection does not abort a paid call.
func (s *Service) fresh(ctx context.Context, hash string, data []byte, img image.Image, start time.Time) reading.Outcome {
	ctx = context.WithoutCancel(ctx)
	logger := observability.FromContext(ctx)

	normalized, err := s.normalizer.Normalize(img)
	if err != nil {
		logger.Warn("image normalization failed, sending original bytes", zap.Error(err))
		normalized = data
	}

	result := s.reader.Read(ctx, reading.JPEGDataURL(normalized))
	if !result.Success {
		if appai.IsUpstreamFailure(result.Reason) {
			s.observer.UpstreamFailed()
		} else {
			s.observer.ReadingRejected()
		}
		return reading.Outcome{Text: result.Text, Status: reading.StatusError}
	}

	audioURL := s.narrator.Narrate(ctx, result.Text)
	s.cache.Set(reading.CachedAnalysis{
		ContentHash: hash,
		Text:        result.Text,
		AudioURL:    audioURL,
		CreatedAt:   s.clock.Now(),
	})
	s.observer.ReadingAccepted()

	elapsed := math.Round(s.clock.Now().Sub(start).Seconds()*100) / 100
	logger.Info("palm reading completed",
		zap.Float64("processing_time", elapsed),
		zap.Bool("audio", audioURL != ""),
	)
	return reading.Outcome{
		Text:           result.Text,
		AudioURL:       audioURL,
		Status:         reading.StatusSuccess,
		ProcessingTime: &elapsed,
	}
}
