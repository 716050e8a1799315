package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-grading-go/internal/grading"
	"github.com/noah-isme/gema-grading-go/internal/models"
)

// GradeSubmissionRequest starts a grading attempt. Mode defaults to AUTO.
type GradeSubmissionRequest struct {
	Mode string `json:"mode" validate:"omitempty,max=32"`
}

// AssignmentLite summarizes an assignment in grading responses.
type AssignmentLite struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	DueDate        time.Time `json:"due_date"`
	CriteriaCodes  []string  `json:"criteria_codes"`
	CriteriaLocked bool      `json:"criteria_locked"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ReadinessResponse previews whether a submission can be graded and which
// representation the model would receive.
type ReadinessResponse struct {
	SubmissionID     uint                          `json:"submission_id"`
	SubmissionStatus string                        `json:"submission_status"`
	Ready            bool                          `json:"ready"`
	Report           grading.ReadinessReport       `json:"report"`
	InputDecision    *grading.GradingInputDecision `json:"input_decision,omitempty"`
	Assignment       AssignmentLite                `json:"assignment"`
	Student          StudentLite                   `json:"student"`
}

// GradingRunResponse serializes one grading audit record.
type GradingRunResponse struct {
	ID               uint                          `json:"id"`
	SubmissionID     uint                          `json:"submission_id"`
	ExtractionRunID  *uint                         `json:"extraction_run_id"`
	Status           string                        `json:"status"`
	RequestedBy      uint                          `json:"requested_by"`
	Provider         string                        `json:"provider,omitempty"`
	Model            string                        `json:"model,omitempty"`
	InputMode        string                        `json:"input_mode,omitempty"`
	OverallGrade     string                        `json:"overall_grade,omitempty"`
	FinalConfidence  *float64                      `json:"final_confidence"`
	WasCapped        bool                          `json:"was_capped"`
	NeedsReview      bool                          `json:"needs_review"`
	Readiness        *grading.ReadinessReport      `json:"readiness,omitempty"`
	InputDecision    *grading.GradingInputDecision `json:"input_decision,omitempty"`
	Decision         *grading.GradeDecision        `json:"decision,omitempty"`
	Confidence       *grading.ConfidenceResult     `json:"confidence,omitempty"`
	ValidationErrors []string                      `json:"validation_errors"`
	CreatedAt        time.Time                     `json:"created_at"`
}

// NewAssignmentLite converts an Assignment model into its summary DTO.
func NewAssignmentLite(model models.Assignment) AssignmentLite {
	return AssignmentLite{
		ID:             model.ID,
		Title:          model.Title,
		DueDate:        model.DueDate,
		CriteriaCodes:  nonNil(model.CriteriaCodeList()),
		CriteriaLocked: model.CriteriaLocked,
	}
}

// NewStudentLite converts a Student model into its summary DTO.
func NewStudentLite(model models.Student) StudentLite {
	return StudentLite{
		ID:    model.ID,
		Name:  model.Name,
		Email: model.Email,
	}
}

// NewGradingRunResponse converts a GradingRun model into a DTO. JSON columns
// that cannot be decoded are left empty.
func NewGradingRunResponse(model models.GradingRun, reviewThreshold float64) GradingRunResponse {
	response := GradingRunResponse{
		ID:               model.ID,
		SubmissionID:     model.SubmissionID,
		ExtractionRunID:  model.ExtractionRunID,
		Status:           model.Status,
		RequestedBy:      model.RequestedBy,
		Provider:         model.Provider,
		Model:            model.Model,
		InputMode:        model.InputMode,
		OverallGrade:     model.OverallGrade,
		FinalConfidence:  model.FinalConfidence,
		WasCapped:        model.WasCapped,
		ValidationErrors: nonNil(model.ValidationErrorList()),
		CreatedAt:        model.CreatedAt,
	}
	if model.FinalConfidence != nil {
		response.NeedsReview = *model.FinalConfidence < reviewThreshold
	}

	response.Readiness = decodeColumn[grading.ReadinessReport](model.Readiness)
	response.InputDecision = decodeColumn[grading.GradingInputDecision](model.InputDecision)
	response.Decision = decodeColumn[grading.GradeDecision](model.Decision)
	response.Confidence = decodeColumn[grading.ConfidenceResult](model.Confidence)

	return response
}

// NewGradingRunResponseSlice converts grading run models into DTOs.
func NewGradingRunResponseSlice(runs []models.GradingRun, reviewThreshold float64) []GradingRunResponse {
	responses := make([]GradingRunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, NewGradingRunResponse(run, reviewThreshold))
	}

	return responses
}

func decodeColumn[T any](data []byte) *T {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil
	}
	return &value
}
