package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrScoringUnavailable covers transport failures, timeouts and non-JSON output from the scoring model.
var ErrScoringUnavailable = errors.New("scoring unavailable")

// ErrMalformedEvaluation indicates the model output did not match the evaluation schema.
var ErrMalformedEvaluation = errors.New("malformed evaluation")

// ScoreRequest contains the texts needed to grade one descriptive answer.
type ScoreRequest struct {
	Question        string
	ReferenceAnswer string
	CandidateAnswer string
}

// Scores holds the four rubric sub-scores plus the model-reported average.
type Scores struct {
	Clarity      float64 `json:"clarity"`
	Relevance    float64 `json:"relevance"`
	Accuracy     float64 `json:"accuracy"`
	Completeness float64 `json:"completeness"`
	Average      float64 `json:"average"`
}

// Evaluation is a validated model verdict for a single answer.
type Evaluation struct {
	Scores   Scores `json:"scores"`
	Feedback string `json:"feedback"`
}

// Scorer describes a model capable of grading a descriptive answer. It returns the raw JSON object
// produced by the model; callers validate it with a ResponseValidator.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (json.RawMessage, error)
}

// Named is implemented by scorers that can report their provider name.
type Named interface {
	Provider() string
}

// ProviderName returns the provider of the scorer, unwrapping decorators when needed.
func ProviderName(s Scorer) string {
	switch v := s.(type) {
	case Named:
		return v.Provider()
	case nil:
		return "none"
	default:
		return "unknown"
	}
}

func unavailable(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrScoringUnavailable, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrScoringUnavailable, op, err)
}
