package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxTokens   = 256
	defaultTemperature = float32(0.4)
	defaultCallTimeout = 30 * time.Second
)

var (
	scoringDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peak",
		Subsystem: "ai",
		Name:      "scoring_duration_seconds",
		Help:      "Duration of answer scoring requests",
	}, []string{"provider", "model"})

	scoringFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peak",
		Subsystem: "ai",
		Name:      "scoring_failures_total",
		Help:      "Number of answer scoring failures",
	}, []string{"provider", "model"})
)

// OpenAIConfig defines configuration options for the OpenAI-compatible scorer.
type OpenAIConfig struct {
	// Provider labels metrics and run logs, e.g. "groq". Defaults to "openai".
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// chatCompleter is the subset of the go-openai client used by the scorer.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIScorer implements Scorer against any OpenAI-compatible chat completion API (OpenAI, Groq).
type OpenAIScorer struct {
	client chatCompleter
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIScorer builds a new scorer using the provided configuration.
func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return newOpenAIScorer(openai.NewClientWithConfig(config), cfg), nil
}

func newOpenAIScorer(client chatCompleter, cfg OpenAIConfig) *OpenAIScorer {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
		if cfg.Provider == "groq" {
			cfg.Model = "llama-3.3-70b-versatile"
		}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIScorer{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/peak-go-api/pkg/ai/openai"),
		logger: logger,
	}
}

// Provider reports the provider label used in metrics and run logs.
func (s *OpenAIScorer) Provider() string {
	return s.cfg.Provider
}

// Score sends one grading request and returns the model's JSON object.
func (s *OpenAIScorer) Score(parent context.Context, req ScoreRequest) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(parent, "openai.score", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	scoringDuration.WithLabelValues(s.Provider(), s.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(span, unavailable("openai chat completion", err))
	}

	if len(resp.Choices) == 0 {
		return nil, s.fail(span, unavailable("no choices returned from openai", nil))
	}

	raw, err := decodeObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))
	return raw, nil
}

func (s *OpenAIScorer) fail(span trace.Span, err error) error {
	scoringFailures.WithLabelValues(s.Provider(), s.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn().Err(err).Str("model", s.cfg.Model).Msg("scoring request failed")
	return err
}
