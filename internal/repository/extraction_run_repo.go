package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-go/internal/models"
)

// ExtractionRunRepository reads extraction runs produced by the extraction worker.
type ExtractionRunRepository interface {
	LatestForSubmission(ctx context.Context, submissionID uint) (models.ExtractionRun, error)
	Create(ctx context.Context, run *models.ExtractionRun) error
}

type extractionRunRepository struct {
	db *gorm.DB
}

// NewExtractionRunRepository instantiates the repository.
func NewExtractionRunRepository(db *gorm.DB) ExtractionRunRepository {
	return &extractionRunRepository{db: db}
}

// LatestForSubmission returns gorm.ErrRecordNotFound when the submission was never extracted.
func (r *extractionRunRepository) LatestForSubmission(ctx context.Context, submissionID uint) (models.ExtractionRun, error) {
	var run models.ExtractionRun
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Order("id DESC").
		First(&run).Error; err != nil {
		return models.ExtractionRun{}, err
	}

	return run, nil
}

func (r *extractionRunRepository) Create(ctx context.Context, run *models.ExtractionRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}
