package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/saurav7sc/mayalens/internal/observability"
)

// CredentialCheck reports whether an upstream credential is configured.
type CredentialCheck func() bool

// EnvCredential is satisfied by a configured value or, failing that, by the
// environment variable name being set at check time.
func EnvCredential(name, configured string) CredentialCheck {
	return func() bool {
		return configured != "" || os.Getenv(name) != ""
	}
}

// ItemCounter is implemented by the analysis cache.
type ItemCounter interface {
	Len() int
}

// DiskUsage is implemented by the audio store.
type DiskUsage interface {
	Size(ctx context.Context) (int64, error)
}

// HealthOptions configures HealthHandler.
type HealthOptions struct {
	Version  string
	Services map[string]CredentialCheck
	Cache    ItemCounter
	Audio    DiskUsage
	Now      func() time.Time
}

// HealthStatus represents the health payload.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	APIVersion string            `json:"api_version"`
	Services   map[string]string `json:"services"`
	Cache      CacheStatus       `json:"cache"`
}

// CacheStatus holds coarse cache statistics.
type CacheStatus struct {
	AnalysisItems  int     `json:"analysis_items"`
	CacheDirSizeMB float64 `json:"cache_dir_size_mb"`
}

// HealthHandler reports liveness, credential presence and cache statistics.
func HealthHandler(opts HealthOptions) http.HandlerFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := HealthStatus{
			Status:     "ok",
			Timestamp:  now().Format(time.RFC3339),
			APIVersion: opts.Version,
			Services:   make(map[string]string, len(opts.Services)),
		}

		for name, check := range opts.Services {
			if check != nil && check() {
				health.Services[name] = "ok"
			} else {
				health.Services[name] = "missing"
			}
		}

		if opts.Cache != nil {
			health.Cache.AnalysisItems = opts.Cache.Len()
		}
		if opts.Audio != nil {
			size, err := opts.Audio.Size(ctx)
			if err != nil {
				observability.FromContext(ctx).Warn("audio store size unavailable", zap.Error(err))
			}
			health.Cache.CacheDirSizeMB = math.Round(float64(size)/(1024*1024)*100) / 100
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(health)
	}
}
