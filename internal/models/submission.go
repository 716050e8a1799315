package models

import "time"

// Submission represents a file submitted by a student for an assignment.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null" json:"assignment_id"`
	StudentID    uint       `gorm:"not null" json:"student_id"`
	FileURL      string     `gorm:"size:512" json:"file_url"`
	FileMime     string     `gorm:"size:128" json:"file_mime"`
	Status       string     `gorm:"size:32;not null;index" json:"status"`
	OverallGrade string     `gorm:"size:32" json:"overall_grade"`
	Confidence   *float64   `json:"confidence"`
	Feedback     string     `gorm:"type:text" json:"feedback"`
	GradedAt     *time.Time `json:"graded_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student      Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

const (
	// SubmissionStatusSubmitted indicates the submission has been uploaded but not processed.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusExtracting indicates text extraction is in progress.
	SubmissionStatusExtracting = "extracting"
	// SubmissionStatusNeedsOCR indicates the extractor could not read the file without OCR.
	SubmissionStatusNeedsOCR = "needs_ocr"
	// SubmissionStatusExtracted indicates an extraction run finished and grading may be attempted.
	SubmissionStatusExtracted = "extracted"
	// SubmissionStatusGraded indicates the submission has a trusted grade.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusNeedsReview indicates a grade exists but its confidence requires a human check.
	SubmissionStatusNeedsReview = "needs_review"
)

// IsGraded reports whether the submission has a grade, reviewed or not.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded || s.Status == SubmissionStatusNeedsReview
}
