package dto

import (
	"time"

	"github.com/noah-isme/peak-go-api/internal/models"
)

// EvaluationRunFilter describes query string filters for the run history.
type EvaluationRunFilter struct {
	Limit int `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// EvaluationRunResponse serializes one recorded evaluate or reset pass.
type EvaluationRunResponse struct {
	ID          uint                   `json:"id"`
	PaperID     string                 `json:"paper_id"`
	Action      string                 `json:"action"`
	Status      string                 `json:"status"`
	Provider    string                 `json:"provider"`
	Submissions int                    `json:"submissions"`
	Answers     int                    `json:"answers"`
	Skipped     int                    `json:"skipped"`
	DurationMs  int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewEvaluationRunResponse maps a run log row to its API representation.
func NewEvaluationRunResponse(run models.EvaluationRun) EvaluationRunResponse {
	return EvaluationRunResponse{
		ID:          run.ID,
		PaperID:     run.PaperID,
		Action:      run.Action,
		Status:      run.Status,
		Provider:    run.Provider,
		Submissions: run.Submissions,
		Answers:     run.Answers,
		Skipped:     run.Skipped,
		DurationMs:  run.DurationMs,
		Error:       run.Error,
		Details:     map[string]interface{}(run.Details),
		CreatedAt:   run.CreatedAt,
	}
}
