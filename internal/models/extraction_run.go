package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

// ExtractionRun records one text extraction attempt over a submission file.
// Runs are written by the extraction worker and only read by grading.
type ExtractionRun struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	SubmissionID       uint           `gorm:"not null;index" json:"submission_id"`
	Status             string         `gorm:"size:32;not null" json:"status"`
	Mode               string         `gorm:"size:32" json:"mode"`
	ExtractedCharCount *int           `json:"extracted_char_count"`
	PageCount          *int           `json:"page_count"`
	OverallConfidence  *float64       `json:"overall_confidence"`
	CoverMetadataReady bool           `gorm:"not null;default:false" json:"cover_metadata_ready"`
	Warnings           datatypes.JSON `gorm:"type:json" json:"-"`
	MissingModalities  int            `gorm:"not null;default:0" json:"missing_modalities"`
	ExtractedText      string         `gorm:"type:text" json:"-"`
	PageImageURLs      datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// SetWarnings stores the extractor warnings.
func (r *ExtractionRun) SetWarnings(warnings []string) {
	r.Warnings = encodeStringList(warnings)
}

// WarningList returns the extractor warnings.
func (r ExtractionRun) WarningList() []string {
	return decodeStringList(r.Warnings)
}

// SetPageImageURLs stores the rendered page image locations.
func (r *ExtractionRun) SetPageImageURLs(urls []string) {
	r.PageImageURLs = encodeStringList(urls)
}

// PageImageURLList returns the rendered page image locations in page order.
func (r ExtractionRun) PageImageURLList() []string {
	return decodeStringList(r.PageImageURLs)
}

// Metrics projects the run into the readiness gate input.
func (r ExtractionRun) Metrics() *grading.ExtractionMetrics {
	return &grading.ExtractionMetrics{
		ExtractedCharCount: r.ExtractedCharCount,
		PageCount:          r.PageCount,
		OverallConfidence:  r.OverallConfidence,
		RunStatus:          r.Status,
		Warnings:           r.WarningList(),
		ExtractionMode:     r.Mode,
		CoverMetadataReady: r.CoverMetadataReady,
	}
}
