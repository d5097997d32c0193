package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Scoring providers understood by Load.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// GroqBaseURL is the OpenAI-compatible endpoint used when PEAK_AI_PROVIDER=groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName      string
	AppEnv       string
	AppPort      string
	AllowOrigins string

	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	RedisURL      string
	NATSURL       string
	EventsChannel string

	JWTSecret string

	AIProvider      string
	AIModel         string
	AIBaseURL       string
	AIMaxTokens     int
	AITemperature   float32
	AITimeout       time.Duration
	OpenAIAPIKey    string
	GroqAPIKey      string
	GeminiAPIKey    string
	ScoringInterval time.Duration
	EvalConcurrency int
	EvalRateLimit   int
	EvalRateWindow  time.Duration
	LockTTL         time.Duration
	LockTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AIAPIKey returns the credential for the selected provider.
func (c Config) AIAPIKey() string {
	switch c.AIProvider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// AuthEnabled reports whether bearer tokens guard the API.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads configuration values from environment variables (prefix PEAK_) and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PEAK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Peak API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8000")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "peak")
	v.SetDefault("events.channel", "peak:papers")
	v.SetDefault("ai.provider", ProviderGroq)
	v.SetDefault("ai.max_tokens", 256)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("scoring.interval", "500ms")
	v.SetDefault("eval.concurrency", 1)
	v.SetDefault("eval.rate_limit", 0)
	v.SetDefault("eval.rate_window", "1m")
	v.SetDefault("lock.ttl", "30s")
	v.SetDefault("lock.timeout", "2m")
	v.SetDefault("shutdown.timeout", "30s")

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		AllowOrigins:    v.GetString("cors.origins"),
		MongoURI:        v.GetString("mongo.uri"),
		MongoDatabase:   v.GetString("mongo.database"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		EventsChannel:   v.GetString("events.channel"),
		JWTSecret:       v.GetString("jwt.secret"),
		AIProvider:      strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		AIModel:         v.GetString("ai.model"),
		AIBaseURL:       v.GetString("ai.base_url"),
		AIMaxTokens:     v.GetInt("ai.max_tokens"),
		AITemperature:   float32(v.GetFloat64("ai.temperature")),
		OpenAIAPIKey:    v.GetString("openai_api_key"),
		GroqAPIKey:      v.GetString("groq_api_key"),
		GeminiAPIKey:    v.GetString("gemini_api_key"),
		EvalConcurrency: v.GetInt("eval.concurrency"),
		EvalRateLimit:   v.GetInt("eval.rate_limit"),
	}

	durations := map[string]*time.Duration{
		"ai.timeout":       &cfg.AITimeout,
		"scoring.interval": &cfg.ScoringInterval,
		"eval.rate_window": &cfg.EvalRateWindow,
		"lock.ttl":         &cfg.LockTTL,
		"lock.timeout":     &cfg.LockTimeout,
		"shutdown.timeout": &cfg.ShutdownTimeout,
	}

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	switch cfg.AIProvider {
	case ProviderOpenAI, ProviderGemini:
	case ProviderGroq:
		if cfg.AIBaseURL == "" {
			cfg.AIBaseURL = GroqBaseURL
		}
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.AIAPIKey() == "" {
		return Config{}, fmt.Errorf("api key for ai provider %q must be provided", cfg.AIProvider)
	}

	if cfg.EvalConcurrency <= 0 {
		cfg.EvalConcurrency = 1
	}

	return cfg, nil
}
