// Package config loads runtime configuration in layers: built-in defaults,
// then an optional .env file, then AIYE_* environment variables, then
// command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// envPrefix is the prefix of all environment variables, e.g. AIYE_TOP_K.
const envPrefix = "AIYE"

// Config is the full runtime configuration.
type Config struct {
	// Serving
	Port     int    `envconfig:"PORT" default:"8000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Corpus
	IndexDir string `envconfig:"INDEX_DIR" default:"./faiss_index"`
	DataDir  string `envconfig:"DATA_DIR" default:"./data"`

	// Retrieval
	TopK      int     `envconfig:"TOP_K" default:"8"`
	MinSim    float64 `envconfig:"MIN_SIM" default:"0.30"`
	Alpha     float64 `envconfig:"ALPHA" default:"0.65"`
	CacheSize int     `envconfig:"CACHE_SIZE" default:"100"`

	// Embeddings
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"local"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:""`
	EmbedDim      int    `envconfig:"EMBED_DIM" default:"384"`
	APIKey        string `envconfig:"API_KEY" default:""`

	// Generation
	GroqAPIKey  string `envconfig:"GROQ_API_KEY" default:""`
	GroqModel   string `envconfig:"GROQ_MODEL" default:""`
	GroqBaseURL string `envconfig:"GROQ_BASE_URL" default:""`

	// Feedback persistence; empty disables the feedback endpoints.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
}

// Load builds the configuration. The .env file is optional; flags registered
// on fs override everything once fs has been parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if fs != nil {
		applyFlags(fs, &cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.setupLogging()
	return &cfg, nil
}

// RegisterFlags declares the command-line overrides on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("index-dir", "", "index directory")
	fs.String("data-dir", "", "document data directory")
	fs.Int("top-k", 0, "number of contexts to retrieve")
	fs.Float64("min-sim", 0, "minimum similarity threshold")
	fs.Float64("alpha", 0, "dense weight for hybrid fusion")
}

func applyFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port, _ = fs.GetInt(f.Name)
		case "log-level":
			cfg.LogLevel, _ = fs.GetString(f.Name)
		case "index-dir":
			cfg.IndexDir, _ = fs.GetString(f.Name)
		case "data-dir":
			cfg.DataDir, _ = fs.GetString(f.Name)
		case "top-k":
			cfg.TopK, _ = fs.GetInt(f.Name)
		case "min-sim":
			cfg.MinSim, _ = fs.GetFloat64(f.Name)
		case "alpha":
			cfg.Alpha, _ = fs.GetFloat64(f.Name)
		}
	})
}

// Validate checks ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.MinSim < 0 || c.MinSim > 1 {
		return fmt.Errorf("min_sim must be in [0,1], got %v", c.MinSim)
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in [0,1], got %v", c.Alpha)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("embed_dim must be positive, got %d", c.EmbedDim)
	}
	return nil
}

func (c *Config) setupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		log.Warn().Str("level", c.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
