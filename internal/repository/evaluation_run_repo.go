package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/peak-go-api/internal/models"
)

// EvaluationRunRepository persists the evaluate/reset run log.
type EvaluationRunRepository interface {
	Create(ctx context.Context, run *models.EvaluationRun) error
	ListByPaper(ctx context.Context, paperID string, limit int) ([]models.EvaluationRun, error)
}

type evaluationRunRepository struct {
	db *gorm.DB
}

// NewEvaluationRunRepository instantiates the repository.
func NewEvaluationRunRepository(db *gorm.DB) EvaluationRunRepository {
	return &evaluationRunRepository{db: db}
}

func (r *evaluationRunRepository) Create(ctx context.Context, run *models.EvaluationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *evaluationRunRepository) ListByPaper(ctx context.Context, paperID string, limit int) ([]models.EvaluationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []models.EvaluationRun
	if err := r.db.WithContext(ctx).
		Where("paper_id = ?", paperID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}
