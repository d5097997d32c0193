package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxSubScore is the upper bound of every rubric criterion.
const MaxSubScore = 10

const evaluationSchema = `{
	"type": "object",
	"required": ["scores", "feedback"],
	"properties": {
		"scores": {
			"type": "object",
			"required": ["clarity", "relevance", "accuracy", "completeness", "average"],
			"properties": {
				"clarity":      {"$ref": "#/$defs/subScore"},
				"relevance":    {"$ref": "#/$defs/subScore"},
				"accuracy":     {"$ref": "#/$defs/subScore"},
				"completeness": {"$ref": "#/$defs/subScore"},
				"average":      {"$ref": "#/$defs/subScore"}
			}
		},
		"feedback": {"type": "string"}
	},
	"$defs": {
		"subScore": {"type": "number", "minimum": 0, "maximum": 10}
	}
}`

// ResponseValidator checks raw model output against the evaluation schema.
type ResponseValidator struct {
	schema *jsonschema.Schema
}

// NewResponseValidator compiles the evaluation schema.
func NewResponseValidator() (*ResponseValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("evaluation.schema.json", strings.NewReader(evaluationSchema)); err != nil {
		return nil, fmt.Errorf("load evaluation schema: %w", err)
	}

	schema, err := compiler.Compile("evaluation.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile evaluation schema: %w", err)
	}

	return &ResponseValidator{schema: schema}, nil
}

// Validate parses raw and returns the evaluation it describes. The model-reported average and
// the feedback text are returned as-is.
func (v *ResponseValidator) Validate(raw json.RawMessage) (Evaluation, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %w", ErrMalformedEvaluation, err)
	}

	if err := v.schema.Validate(document); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %w", ErrMalformedEvaluation, err)
	}

	var evaluation Evaluation
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %w", ErrMalformedEvaluation, err)
	}

	return evaluation, nil
}
