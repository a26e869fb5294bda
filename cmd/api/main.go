package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/saurav7sc/mayalens/internal/application"
	appai "github.com/saurav7sc/mayalens/internal/application/ai"
	"github.com/saurav7sc/mayalens/internal/application/palm"
	"github.com/saurav7sc/mayalens/internal/config"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
	"github.com/saurav7sc/mayalens/internal/infra/ai/openai"
	"github.com/saurav7sc/mayalens/internal/infra/cache"
	"github.com/saurav7sc/mayalens/internal/infra/httpserver"
	"github.com/saurav7sc/mayalens/internal/infra/imaging"
	"github.com/saurav7sc/mayalens/internal/infra/storage"
	"github.com/saurav7sc/mayalens/internal/infra/tts"
	"github.com/saurav7sc/mayalens/internal/middleware"
	"github.com/saurav7sc/mayalens/internal/observability"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audio, err := newAudioStore(ctx, cfg)
	if err != nil {
		logger.Fatal("audio store init failed", zap.Error(err))
	}

	var narrator reading.Narrator = tts.Silent{}
	if cfg.ElevenLabs.APIKey != "" {
		narrator = tts.NewElevenLabs(tts.Options{
			APIKey:  cfg.ElevenLabs.APIKey,
			VoiceID: cfg.ElevenLabs.VoiceID,
			ModelID: cfg.ElevenLabs.ModelID,
			BaseURL: cfg.ElevenLabs.BaseURL,
			Timeout: cfg.ElevenLabs.Timeout,
		}, audio, logger)
	} else {
		logger.Warn("ELEVENLABS_API_KEY not set, readings will have no audio")
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, palm analysis calls will fail")
	}

	clock := application.SystemClock{}
	memory := cache.NewMemory(cfg.Cache.TTL, cfg.Cache.MaxEntries, clock)
	go memory.Run(ctx, cfg.Cache.SweepInterval)

	limiter := middleware.NewSlidingWindow(cfg.RateLimit.Requests, cfg.RateLimit.Window, clock)
	go limiter.Run(ctx, cfg.RateLimit.SweepInterval)

	client := openai.NewClient(openai.Options{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		BaseURL:     cfg.OpenAI.BaseURL,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout,
	})
	aiSvc := appai.NewService(client, cfg.QualityFilter())

	metrics := middleware.NewMetrics()
	palmSvc := palm.NewService(
		memory,
		imaging.NewNormalizer(cfg.Image.MaxDimension, cfg.Image.JPEGQuality, cfg.Image.MaxPixels),
		aiSvc,
		narrator,
		palm.Options{Clock: clock, Observer: metrics, DedupeInFlight: cfg.Cache.DedupeInFlight},
	)

	handler := httpserver.NewRouter(httpserver.Deps{
		Palm:    palmSvc,
		Audio:   audio,
		Cache:   memory,
		Limiter: limiter,
		Metrics: metrics,
		Logger:  logger,
	}, httpserver.Options{
		MaxUploadBytes: cfg.Image.MaxUploadBytes,
		TrustProxy:     cfg.Server.TrustProxy,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Services: map[string]middleware.CredentialCheck{
			"openai":     middleware.EnvCredential("OPENAI_API_KEY", cfg.OpenAI.APIKey),
			"elevenlabs": middleware.EnvCredential("ELEVENLABS_API_KEY", cfg.ElevenLabs.APIKey),
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newAudioStore(ctx context.Context, cfg *config.Config) (reading.AudioStore, error) {
	if cfg.UseMinio() {
		return storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
	}
	return storage.NewLocal(cfg.Cache.Dir)
}
