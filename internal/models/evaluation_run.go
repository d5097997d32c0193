package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation run actions and outcomes.
const (
	EvaluationActionEvaluate = "evaluate"
	EvaluationActionReset    = "reset"

	EvaluationRunSucceeded = "succeeded"
	EvaluationRunFailed    = "failed"
)

// EvaluationRun records one evaluate or reset pass over a paper.
type EvaluationRun struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	PaperID     string            `gorm:"size:24;index;not null" json:"paper_id"`
	Action      string            `gorm:"size:16;not null" json:"action"`
	Status      string            `gorm:"size:16;not null" json:"status"`
	Provider    string            `gorm:"size:32" json:"provider"`
	Submissions int               `json:"submissions"`
	Answers     int               `json:"answers"`
	Skipped     int               `json:"skipped"`
	DurationMs  int64             `json:"duration_ms"`
	Error       string            `gorm:"type:text" json:"error,omitempty"`
	Details     datatypes.JSONMap `gorm:"type:json" json:"details,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
