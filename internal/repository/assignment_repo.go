package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-go/internal/models"
)

// AssignmentRepository defines persistence operations for assignment criteria sets.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	UpdateCriteria(ctx context.Context, assignment *models.Assignment) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

// UpdateCriteria persists only the criteria columns so concurrent edits of
// the assignment body are not overwritten.
func (r *assignmentRepository) UpdateCriteria(ctx context.Context, assignment *models.Assignment) error {
	result := r.db.WithContext(ctx).
		Model(assignment).
		Select("CriteriaCodes", "BriefCriteriaCodes", "CriteriaLocked").
		Updates(assignment)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
