package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saurav7sc/mayalens/internal/domain/reading"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		IdleTimeout  time.Duration `yaml:"idleTimeout"`
		TrustProxy   bool          `yaml:"trustProxy"`
		CORSOrigins  []string      `yaml:"corsOrigins"`
	} `yaml:"server"`

	OpenAI struct {
		APIKey    string `yaml:"apiKey"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"baseURL"`
		MaxTokens int    `yaml:"maxTokens"`

		// Temperature must be positive: go-openai drops a zero temperature
		// from the request, so the provider would apply its own default.
		Temperature float32       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"openai"`

	ElevenLabs struct {
		APIKey  string        `yaml:"apiKey"`
		VoiceID string        `yaml:"voiceID"`
		ModelID string        `yaml:"modelID"`
		BaseURL string        `yaml:"baseURL"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"elevenlabs"`

	RateLimit struct {
		Requests      int           `yaml:"requests"`
		Window        time.Duration `yaml:"window"`
		SweepInterval time.Duration `yaml:"sweepInterval"`
	} `yaml:"rateLimit"`

	Cache struct {
		TTL            time.Duration `yaml:"ttl"`
		MaxEntries     int           `yaml:"maxEntries"`
		SweepInterval  time.Duration `yaml:"sweepInterval"`
		Dir            string        `yaml:"dir"`
		DedupeInFlight bool          `yaml:"dedupeInFlight"`
	} `yaml:"cache"`

	Image struct {
		MaxDimension   int   `yaml:"maxDimension"`
		JPEGQuality    int   `yaml:"jpegQuality"`
		MaxUploadBytes int64 `yaml:"maxUploadBytes"`
		MaxPixels      int64 `yaml:"maxPixels"`
	} `yaml:"image"`

	// Quality overrides the built-in filter. Unset thresholds and empty lists
	// keep the defaults; an explicit 0 disables that threshold.
	Quality struct {
		MinLength      *int     `yaml:"minLength"`
		MinMarkers     *int     `yaml:"minMarkers"`
		MinParagraphs  *int     `yaml:"minParagraphs"`
		RefusalPhrases []string `yaml:"refusalPhrases"`
		SectionMarkers []string `yaml:"sectionMarkers"`
		Fallbacks      []string `yaml:"fallbacks"`
	} `yaml:"quality"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8000
	cfg.Server.ReadTimeout = 30 * time.Second
	// must outlive the 45s upstream call
	cfg.Server.WriteTimeout = 90 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.CORSOrigins = []string{"*"}

	cfg.OpenAI.Model = "gpt-4o"
	cfg.OpenAI.MaxTokens = 700
	cfg.OpenAI.Temperature = 0.7
	cfg.OpenAI.Timeout = 45 * time.Second

	cfg.ElevenLabs.VoiceID = "pNInz6obpgDQGcFmaJgB"
	cfg.ElevenLabs.ModelID = "eleven_multilingual_v2"
	cfg.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	cfg.ElevenLabs.Timeout = 30 * time.Second

	cfg.RateLimit.Requests = 10
	cfg.RateLimit.Window = 60 * time.Second
	cfg.RateLimit.SweepInterval = 5 * time.Minute

	cfg.Cache.TTL = time.Hour
	cfg.Cache.MaxEntries = 1024
	cfg.Cache.SweepInterval = 5 * time.Minute
	cfg.Cache.Dir = "./cache"

	cfg.Image.MaxDimension = 1024
	cfg.Image.JPEGQuality = 85
	cfg.Image.MaxUploadBytes = 10 << 20
	cfg.Image.MaxPixels = 89_478_485

	cfg.Minio.BucketName = "palm-audio"

	cfg.Log.Level = "info"
	return &cfg
}

// Load reads the YAML file at path on top of Default and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("ELEVENLABS_API_KEY"); v != "" {
		c.ElevenLabs.APIKey = v
	}
	if v := os.Getenv("ELEVENLABS_VOICE_ID"); v != "" {
		c.ElevenLabs.VoiceID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rateLimit requires positive requests and window")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Image.MaxDimension <= 0 {
		return fmt.Errorf("image.maxDimension must be positive")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpegQuality must be within 1..100")
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive")
	}
	if c.OpenAI.Temperature <= 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be within (0, 2]")
	}
	if c.Image.MaxPixels <= 0 {
		return fmt.Errorf("image.maxPixels must be positive")
	}
	for name, v := range map[string]*int{
		"quality.minLength":     c.Quality.MinLength,
		"quality.minMarkers":    c.Quality.MinMarkers,
		"quality.minParagraphs": c.Quality.MinParagraphs,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// UseMinio reports whether audio artifacts go to object storage instead of Cache.Dir.
func (c *Config) UseMinio() bool {
	return c.Minio.Endpoint != ""
}

// QualityFilter builds the reading filter from the defaults and the quality section.
func (c *Config) QualityFilter() reading.QualityFilter {
	f := reading.DefaultQualityFilter().Merge(reading.QualityFilter{
		RefusalPhrases: c.Quality.RefusalPhrases,
		SectionMarkers: c.Quality.SectionMarkers,
		Fallbacks:      c.Quality.Fallbacks,
	})
	if c.Quality.MinLength != nil {
		f.MinLength = *c.Quality.MinLength
	}
	if c.Quality.MinMarkers != nil {
		f.MinMarkers = *c.Quality.MinMarkers
	}
	if c.Quality.MinParagraphs != nil {
		f.MinParagraphs = *c.Quality.MinParagraphs
	}
	return f
}
