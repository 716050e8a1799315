package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/gema-grading-go/internal/grading"
)

// Fixture describes one submission as the grading service would see it.
type Fixture struct {
	Name             string            `yaml:"name"`
	SubmissionStatus string            `yaml:"submission_status"`
	RequestedMode    string            `yaml:"requested_mode"`
	PageImageCapable bool              `yaml:"page_image_capable"`
	Criteria         []string          `yaml:"criteria"`
	BriefCriteria    []string          `yaml:"brief_criteria"`
	CriteriaLocked   *bool             `yaml:"criteria_locked"`
	Extraction       *ExtractionRecord `yaml:"extraction"`
	Answer           string            `yaml:"answer"`
	AnswerFile       string            `yaml:"answer_file"`

	dir string
}

// ExtractionRecord is the fixture form of an extraction run. A missing
// extraction block means no run was recorded.
type ExtractionRecord struct {
	Status             string   `yaml:"status"`
	Mode               string   `yaml:"mode"`
	ExtractedChars     *int     `yaml:"extracted_chars"`
	PageCount          *int     `yaml:"page_count"`
	Confidence         *float64 `yaml:"confidence"`
	Warnings           []string `yaml:"warnings"`
	CoverMetadataReady bool     `yaml:"cover_metadata_ready"`
	MissingModalities  int      `yaml:"missing_modalities"`
}

func loadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if fixture.Name == "" {
		fixture.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	fixture.dir = filepath.Dir(path)
	return fixture, nil
}

func (f Fixture) metrics() *grading.ExtractionMetrics {
	if f.Extraction == nil {
		return nil
	}
	return &grading.ExtractionMetrics{
		ExtractedCharCount: f.Extraction.ExtractedChars,
		PageCount:          f.Extraction.PageCount,
		OverallConfidence:  f.Extraction.Confidence,
		RunStatus:          f.Extraction.Status,
		Warnings:           f.Extraction.Warnings,
		ExtractionMode:     f.Extraction.Mode,
		CoverMetadataReady: f.Extraction.CoverMetadataReady,
	}
}

func (f Fixture) locked() bool {
	if f.CriteriaLocked == nil {
		return len(f.Criteria) > 0
	}
	return *f.CriteriaLocked
}

// answer returns the raw model answer, or nil when the fixture carries none.
func (f Fixture) answer() ([]byte, error) {
	if strings.TrimSpace(f.Answer) != "" {
		return []byte(f.Answer), nil
	}
	if f.AnswerFile == "" {
		return nil, nil
	}
	path := f.AnswerFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answer: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(value)
}
