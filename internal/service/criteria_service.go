package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-go/internal/dto"
	"github.com/noah-isme/gema-grading-go/internal/grading"
	"github.com/noah-isme/gema-grading-go/internal/repository"
)

var (
	// ErrAssignmentNotFound indicates the assignment was not located.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrCriteriaAlreadyLocked indicates a teacher tried to change a locked criteria set.
	ErrCriteriaAlreadyLocked = errors.New("assignment criteria are already locked")
	// ErrInvalidCriterionCode indicates a code that is not a band letter followed by a number.
	ErrInvalidCriterionCode = errors.New("invalid criterion code")
)

// CriteriaService manages the authoritative criteria set of assignments.
type CriteriaService interface {
	Get(ctx context.Context, assignmentID uint) (dto.AssignmentCriteriaResponse, error)
	Lock(ctx context.Context, assignmentID uint, payload dto.LockCriteriaRequest, actor Actor) (dto.AssignmentCriteriaResponse, error)
}

type criteriaService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCriteriaService constructs the criteria service.
func NewCriteriaService(repo repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) CriteriaService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &criteriaService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "criteria_service").Logger(),
	}
}

func (s *criteriaService) Get(ctx context.Context, assignmentID uint) (dto.AssignmentCriteriaResponse, error) {
	assignment, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentCriteriaResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentCriteriaResponse{}, err
	}
	return dto.NewAssignmentCriteriaResponse(assignment), nil
}

// Lock stores the criteria set and marks it locked. Re-locking with the same
// codes is a no-op; only admins may replace a locked set.
func (s *criteriaService) Lock(ctx context.Context, assignmentID uint, payload dto.LockCriteriaRequest, actor Actor) (dto.AssignmentCriteriaResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentCriteriaResponse{}, err
	}

	codes, err := normalizeCodes(payload.Codes)
	if err != nil {
		return dto.AssignmentCriteriaResponse{}, err
	}

	assignment, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentCriteriaResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentCriteriaResponse{}, err
	}

	brief := grading.ReferencedCriterionCodes(assignment.Description)
	if payload.BriefCodes != nil {
		if brief, err = normalizeCodes(payload.BriefCodes); err != nil {
			return dto.AssignmentCriteriaResponse{}, err
		}
	}

	if assignment.CriteriaLocked {
		if slices.Equal(assignment.CriteriaCodeList(), codes) {
			return dto.NewAssignmentCriteriaResponse(assignment), nil
		}
		if !actor.IsAdmin() {
			return dto.AssignmentCriteriaResponse{}, ErrCriteriaAlreadyLocked
		}
	}

	assignment.SetCriteriaCodes(codes)
	assignment.SetBriefCriteriaCodes(brief)
	assignment.CriteriaLocked = true
	if err := s.repo.UpdateCriteria(ctx, &assignment); err != nil {
		return dto.AssignmentCriteriaResponse{}, err
	}

	response := dto.NewAssignmentCriteriaResponse(assignment)
	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("actor_id", actor.ID).
		Strs("codes", codes).
		Float64("brief_overlap", response.Alignment.OverlapRatio).
		Msg("criteria locked")

	return response, nil
}

// normalizeCodes upper-cases, validates and de-duplicates codes, keeping the
// caller's order.
func normalizeCodes(raw []string) ([]string, error) {
	codes := make([]string, 0, len(raw))
	seen := make(map[grading.CriterionCode]struct{}, len(raw))
	for _, value := range raw {
		code := grading.NormalizeCriterionCode(value)
		if !grading.IsCriterionCode(code) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCriterionCode, value)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, string(code))
	}
	return codes, nil
}
