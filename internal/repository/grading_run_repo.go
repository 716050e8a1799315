package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-go/internal/models"
)

// GradingRunRepository stores the grading audit trail. Runs are append-only.
type GradingRunRepository interface {
	Create(ctx context.Context, run *models.GradingRun) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingRun, error)
}

type gradingRunRepository struct {
	db *gorm.DB
}

// NewGradingRunRepository instantiates the repository.
func NewGradingRunRepository(db *gorm.DB) GradingRunRepository {
	return &gradingRunRepository{db: db}
}

func (r *gradingRunRepository) Create(ctx context.Context, run *models.GradingRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *gradingRunRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingRun, error) {
	var runs []models.GradingRun
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}
