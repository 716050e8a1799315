package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// GradingRunStatusBlocked indicates the readiness gate refused the attempt.
	GradingRunStatusBlocked = "blocked"
	// GradingRunStatusRejected indicates the model answer failed validation.
	GradingRunStatusRejected = "rejected"
	// GradingRunStatusCompleted indicates a validated and scored decision.
	GradingRunStatusCompleted = "completed"
)

// GradingRun is the audit record of one grading attempt. The JSON columns hold
// the gate report, the input decision, the normalized decision, the confidence
// breakdown and any validation errors exactly as they were produced.
type GradingRun struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubmissionID     uint           `gorm:"not null;index" json:"submission_id"`
	ExtractionRunID  *uint          `json:"extraction_run_id"`
	Status           string         `gorm:"size:16;not null" json:"status"`
	RequestedBy      uint           `json:"requested_by"`
	Provider         string         `gorm:"size:64" json:"provider"`
	Model            string         `gorm:"size:128" json:"model"`
	InputMode        string         `gorm:"size:32" json:"input_mode"`
	OverallGrade     string         `gorm:"size:32" json:"overall_grade"`
	FinalConfidence  *float64       `json:"final_confidence"`
	WasCapped        bool           `gorm:"not null;default:false" json:"was_capped"`
	Readiness        datatypes.JSON `gorm:"type:json" json:"readiness"`
	InputDecision    datatypes.JSON `gorm:"type:json" json:"input_decision"`
	Decision         datatypes.JSON `gorm:"type:json" json:"decision"`
	Confidence       datatypes.JSON `gorm:"type:json" json:"confidence"`
	ValidationErrors datatypes.JSON `gorm:"type:json" json:"validation_errors"`
	RawAnswer        string         `gorm:"type:text" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SetValidationErrors stores the validator error list.
func (r *GradingRun) SetValidationErrors(errs []string) {
	r.ValidationErrors = encodeStringList(errs)
}

// ValidationErrorList returns the stored validator errors.
func (r GradingRun) ValidationErrorList() []string {
	return decodeStringList(r.ValidationErrors)
}
