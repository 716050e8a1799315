package dto

import (
	"github.com/noah-isme/gema-grading-go/internal/grading"
	"github.com/noah-isme/gema-grading-go/internal/models"
)

// LockCriteriaRequest sets and locks the criteria set of an assignment.
// BriefCodes defaults to the codes mentioned in the assignment description.
type LockCriteriaRequest struct {
	Codes      []string `json:"codes" validate:"required,min=1,max=64,dive,required,max=8"`
	BriefCodes []string `json:"brief_codes" validate:"omitempty,max=64,dive,required,max=8"`
}

// AssignmentCriteriaResponse describes the criteria set grading runs against.
type AssignmentCriteriaResponse struct {
	AssignmentID       uint                      `json:"assignment_id"`
	Title              string                    `json:"title"`
	CriteriaCodes      []string                  `json:"criteria_codes"`
	BriefCriteriaCodes []string                  `json:"brief_criteria_codes"`
	CriteriaLocked     bool                      `json:"criteria_locked"`
	Alignment          grading.CriteriaAlignment `json:"alignment"`
}

// NewAssignmentCriteriaResponse converts an Assignment model into its criteria DTO.
func NewAssignmentCriteriaResponse(model models.Assignment) AssignmentCriteriaResponse {
	codes := nonNil(model.CriteriaCodeList())
	brief := nonNil(model.BriefCriteriaCodeList())
	return AssignmentCriteriaResponse{
		AssignmentID:       model.ID,
		Title:              model.Title,
		CriteriaCodes:      codes,
		BriefCriteriaCodes: brief,
		CriteriaLocked:     model.CriteriaLocked,
		Alignment:          grading.AlignCriteria(codes, brief),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
