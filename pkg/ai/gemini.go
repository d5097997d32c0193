package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// GeminiConfig defines configuration options for the Gemini scorer.
type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// GeminiScorer implements Scorer using the Google generative AI SDK.
type GeminiScorer struct {
	client *genai.Client
	model  *genai.GenerativeModel
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiScorer opens a Gemini client. Close must be called when the scorer is no longer used.
func NewGeminiScorer(ctx context.Context, cfg GeminiConfig) (*GeminiScorer, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
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

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	temperature := cfg.Temperature
	maxTokens := int32(cfg.MaxTokens)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  &maxTokens,
		ResponseMIMEType: "application/json",
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt())},
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GeminiScorer{
		client: client,
		model:  model,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/peak-go-api/pkg/ai/gemini"),
		logger: logger,
	}, nil
}

// Provider reports the provider label used in metrics and run logs.
func (s *GeminiScorer) Provider() string {
	return "gemini"
}

// Close releases the underlying client connection.
func (s *GeminiScorer) Close() error {
	return s.client.Close()
}

// Score sends one grading request and returns the model's JSON object.
func (s *GeminiScorer) Score(parent context.Context, req ScoreRequest) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(parent, "gemini.score", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx, genai.Text(buildUserPrompt(req)))
	scoringDuration.WithLabelValues(s.Provider(), s.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(span, unavailable("gemini generate content", err))
	}

	raw, err := decodeObject(firstText(resp))
	if err != nil {
		return nil, s.fail(span, err)
	}

	return raw, nil
}

func (s *GeminiScorer) fail(span trace.Span, err error) error {
	scoringFailures.WithLabelValues(s.Provider(), s.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn().Err(err).Str("model", s.cfg.Model).Msg("scoring request failed")
	return err
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var builder strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
		if builder.Len() > 0 {
			return builder.String()
		}
	}
	return ""
}
