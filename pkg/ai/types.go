package ai

import "context"

// Input modes understood by graders. They mirror the modes chosen by the
// grading input strategy.
const (
	ModeExtractedText = "EXTRACTED_TEXT"
	ModeRawPageImages = "RAW_PAGE_IMAGES"
)

// GradeRequest contains the artefacts a model needs to grade one submission.
type GradeRequest struct {
	Mode            string
	AssignmentTitle string
	Brief           string
	CriteriaCodes   []string
	ExtractedText   string
	PageImageURLs   []string
}

// GradeResponse carries the untouched model answer. Callers must validate Raw
// before reading anything from it.
type GradeResponse struct {
	Raw      []byte
	Provider string
	Model    string
}

// Grader describes a generative model capable of grading a submission against
// a criteria set.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (GradeResponse, error)
}
