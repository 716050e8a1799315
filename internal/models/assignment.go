package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Assignment represents an assessed assignment and its criteria set.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	DueDate     time.Time `gorm:"not null" json:"due_date"`
	FileURL     string    `gorm:"size:512" json:"file_url"`
	// CriteriaCodes is the authoritative criteria set graded against.
	CriteriaCodes datatypes.JSON `gorm:"type:json" json:"-"`
	// BriefCriteriaCodes are the codes referenced by the assignment brief.
	BriefCriteriaCodes datatypes.JSON `gorm:"type:json" json:"-"`
	CriteriaLocked     bool           `gorm:"not null;default:false" json:"criteria_locked"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Submissions        []Submission
}

// SetCriteriaCodes stores the authoritative criteria set.
func (a *Assignment) SetCriteriaCodes(codes []string) {
	a.CriteriaCodes = encodeStringList(codes)
}

// CriteriaCodeList returns the authoritative criteria set.
func (a Assignment) CriteriaCodeList() []string {
	return decodeStringList(a.CriteriaCodes)
}

// SetBriefCriteriaCodes stores the codes found in the assignment brief.
func (a *Assignment) SetBriefCriteriaCodes(codes []string) {
	a.BriefCriteriaCodes = encodeStringList(codes)
}

// BriefCriteriaCodeList returns the codes found in the assignment brief.
func (a Assignment) BriefCriteriaCodeList() []string {
	return decodeStringList(a.BriefCriteriaCodes)
}

func encodeStringList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(data)
}

func decodeStringList(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil
	}
	return values
}
