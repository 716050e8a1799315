package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-go/internal/dto"
	"github.com/noah-isme/gema-grading-go/internal/events"
	"github.com/noah-isme/gema-grading-go/internal/grading"
	"github.com/noah-isme/gema-grading-go/internal/models"
	"github.com/noah-isme/gema-grading-go/internal/observability"
	"github.com/noah-isme/gema-grading-go/internal/repository"
	"github.com/noah-isme/gema-grading-go/pkg/ai"
)

var (
	// ErrSubmissionNotFound indicates the submission was not located.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrGraderUnavailable indicates no model is configured or the model call failed.
	ErrGraderUnavailable = errors.New("grader unavailable")
	// ErrCriteriaNotLocked indicates the assignment has no locked criteria set to grade against.
	ErrCriteriaNotLocked = errors.New("assignment criteria are not locked")
	// ErrGradingBlocked indicates the readiness gate refused to grade.
	ErrGradingBlocked = errors.New("grading blocked")
	// ErrDecisionRejected indicates the model answer failed validation.
	ErrDecisionRejected = errors.New("model decision rejected")
	// ErrInvalidInputMode indicates an unknown requested input mode.
	ErrInvalidInputMode = errors.New("invalid input mode")
)

// CheckCriteriaLocked names the readiness check recording a locked criteria set.
const CheckCriteriaLocked = "criteria_locked"

// GradingBlockedError carries the readiness report that stopped a grading attempt.
type GradingBlockedError struct {
	RunID  uint
	Report grading.ReadinessReport
}

func (e *GradingBlockedError) Error() string {
	return fmt.Sprintf("grading blocked: %s", strings.Join(e.Report.Blockers, "; "))
}

func (e *GradingBlockedError) Unwrap() error { return ErrGradingBlocked }

// DecisionRejectedError carries the validator errors of a rejected model answer.
type DecisionRejectedError struct {
	RunID  uint
	Errors []string
}

func (e *DecisionRejectedError) Error() string {
	return fmt.Sprintf("model decision rejected with %d error(s)", len(e.Errors))
}

func (e *DecisionRejectedError) Unwrap() error { return ErrDecisionRejected }

// Roles allowed to grade.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Actor represents the authenticated teacher or admin requesting a grade.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor may override locked criteria sets.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// GradingServiceConfig tunes the grading service.
type GradingServiceConfig struct {
	Pipeline grading.Config
	// ReviewThreshold is the final confidence below which a grade is routed
	// to human review.
	ReviewThreshold float64
	GraderTimeout   time.Duration
}

// GradingService runs the grading quality-assurance pipeline for submissions.
type GradingService interface {
	CheckReadiness(ctx context.Context, submissionID uint) (dto.ReadinessResponse, error)
	Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor Actor) (dto.GradingRunResponse, error)
	ListRuns(ctx context.Context, submissionID uint) ([]dto.GradingRunResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	extractions repository.ExtractionRunRepository
	runs        repository.GradingRunRepository
	grader      ai.Grader
	publisher   events.Publisher
	validator   *validator.Validate
	cfg         GradingServiceConfig
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service. A nil grader makes Grade
// fail with ErrGraderUnavailable once the readiness gate passes.
func NewGradingService(
	submissions repository.SubmissionRepository,
	extractions repository.ExtractionRunRepository,
	runs repository.GradingRunRepository,
	grader ai.Grader,
	publisher events.Publisher,
	validate *validator.Validate,
	cfg GradingServiceConfig,
	logger zerolog.Logger,
) GradingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &gradingService{
		submissions: submissions,
		extractions: extractions,
		runs:        runs,
		grader:      grader,
		publisher:   publisher,
		validator:   validate,
		cfg:         cfg,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grading-go/internal/service/grading"),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

// gradingContext is everything loaded for one submission before the gate runs.
type gradingContext struct {
	submission models.Submission
	run        *models.ExtractionRun
	codes      []string
	report     grading.ReadinessReport
}

func (s *gradingService) load(ctx context.Context, submissionID uint) (gradingContext, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gradingContext{}, ErrSubmissionNotFound
		}
		return gradingContext{}, err
	}

	gc := gradingContext{submission: submission, codes: submission.Assignment.CriteriaCodeList()}

	run, err := s.extractions.LatestForSubmission(ctx, submissionID)
	switch {
	case err == nil:
		gc.run = &run
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return gradingContext{}, err
	}

	var metrics *grading.ExtractionMetrics
	if gc.run != nil {
		metrics = gc.run.Metrics()
	}
	gc.report = grading.EvaluateReadiness(metrics, submission.Status, s.cfg.Pipeline.Readiness)
	observability.ObserveReadiness(gc.report.OK)

	return gc, nil
}

func (s *gradingService) CheckReadiness(ctx context.Context, submissionID uint) (dto.ReadinessResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.readiness", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
	))
	defer span.End()

	gc, err := s.load(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.ReadinessResponse{}, err
	}

	response := dto.ReadinessResponse{
		SubmissionID:     gc.submission.ID,
		SubmissionStatus: gc.submission.Status,
		Ready:            gc.report.OK && gc.submission.Assignment.CriteriaLocked && len(gc.codes) > 0,
		Report:           gc.report,
		Assignment:       dto.NewAssignmentLite(gc.submission.Assignment),
		Student:          dto.NewStudentLite(gc.submission.Student),
	}
	if gc.report.OK {
		decision := grading.SelectInput(s.inputRequest(gc, grading.RequestedModeAuto), s.cfg.Pipeline.InputStrategy)
		response.InputDecision = &decision
	}

	span.SetAttributes(attribute.Bool("grading.ready", response.Ready))
	return response, nil
}

func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor Actor) (dto.GradingRunResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingRunResponse{}, err
	}

	requested, err := grading.ParseInputMode(payload.Mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_mode")
		return dto.GradingRunResponse{}, fmt.Errorf("%w: %v", ErrInvalidInputMode, err)
	}

	gc, err := s.load(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.GradingRunResponse{}, err
	}

	if !gc.submission.Assignment.CriteriaLocked || len(gc.codes) == 0 {
		span.RecordError(ErrCriteriaNotLocked)
		span.SetStatus(codes.Error, "criteria_not_locked")
		return dto.GradingRunResponse{}, ErrCriteriaNotLocked
	}

	logger := s.logger.With().
		Str("correlation_id", observability.CorrelationID(ctx)).
		Uint("submission_id", gc.submission.ID).
		Uint("actor_id", actor.ID).
		Logger()

	if !gc.report.OK {
		return s.block(ctx, span, logger, gc, actor)
	}

	if s.grader == nil {
		span.RecordError(ErrGraderUnavailable)
		span.SetStatus(codes.Error, "grader_unavailable")
		return dto.GradingRunResponse{}, ErrGraderUnavailable
	}

	input := grading.SelectInput(s.inputRequest(gc, requested), s.cfg.Pipeline.InputStrategy)
	observability.ObserveInputMode(string(input.Mode))
	span.SetAttributes(attribute.String("grading.input_mode", string(input.Mode)))

	answer, err := s.callGrader(ctx, gc, input)
	if err != nil {
		logger.Error().Err(err).Str("input_mode", string(input.Mode)).Msg("grader call failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "grader_failed")
		return dto.GradingRunResponse{}, fmt.Errorf("%w: %v", ErrGraderUnavailable, err)
	}

	conclusion := grading.ConcludeJSON(answer.Raw, gc.codes, s.signals(gc), s.cfg.Pipeline)
	if conclusion.Accepted() {
		if err := grading.CheckDecisionContract(*conclusion.Validation.Data); err != nil {
			conclusion = grading.Conclusion{Validation: grading.DecisionResult{Errors: []string{err.Error()}}}
		}
	}

	run := models.GradingRun{
		SubmissionID:  gc.submission.ID,
		RequestedBy:   actor.ID,
		Provider:      answer.Provider,
		Model:         answer.Model,
		InputMode:     string(input.Mode),
		Readiness:     encodeColumn(gc.report),
		InputDecision: encodeColumn(input),
		RawAnswer:     string(answer.Raw),
	}
	if gc.run != nil {
		run.ExtractionRunID = &gc.run.ID
	}

	if !conclusion.Accepted() {
		return s.reject(ctx, span, logger, gc, run, conclusion.Validation.Errors)
	}

	return s.complete(ctx, span, logger, gc, run, conclusion)
}

func (s *gradingService) block(ctx context.Context, span trace.Span, logger zerolog.Logger, gc gradingContext, actor Actor) (dto.GradingRunResponse, error) {
	run := models.GradingRun{
		SubmissionID: gc.submission.ID,
		Status:       models.GradingRunStatusBlocked,
		RequestedBy:  actor.ID,
		Readiness:    encodeColumn(gc.report),
	}
	if gc.run != nil {
		run.ExtractionRunID = &gc.run.ID
	}
	run.SetValidationErrors(nil)

	if err := s.runs.Create(ctx, &run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run_persist_failed")
		return dto.GradingRunResponse{}, err
	}

	logger.Warn().Strs("blockers", gc.report.Blockers).Uint("run_id", run.ID).Msg("grading blocked by readiness gate")
	s.publish(ctx, gc, run, len(gc.report.Blockers), 0, nil)

	span.SetStatus(codes.Error, "grading_blocked")
	return dto.GradingRunResponse{}, &GradingBlockedError{RunID: run.ID, Report: gc.report}
}

func (s *gradingService) reject(ctx context.Context, span trace.Span, logger zerolog.Logger, gc gradingContext, run models.GradingRun, validationErrors []string) (dto.GradingRunResponse, error) {
	observability.ObserveDecisionRejected()

	run.Status = models.GradingRunStatusRejected
	run.SetValidationErrors(validationErrors)
	if err := s.runs.Create(ctx, &run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run_persist_failed")
		return dto.GradingRunResponse{}, err
	}

	logger.Warn().Int("error_count", len(validationErrors)).Uint("run_id", run.ID).Msg("model decision rejected")
	s.publish(ctx, gc, run, 0, len(validationErrors), nil)

	span.SetStatus(codes.Error, "decision_rejected")
	return dto.GradingRunResponse{}, &DecisionRejectedError{RunID: run.ID, Errors: validationErrors}
}

func (s *gradingService) complete(ctx context.Context, span trace.Span, logger zerolog.Logger, gc gradingContext, run models.GradingRun, conclusion grading.Conclusion) (dto.GradingRunResponse, error) {
	decision := conclusion.Validation.Data
	confidence := conclusion.Confidence
	final := confidence.FinalConfidence

	run.Status = models.GradingRunStatusCompleted
	run.OverallGrade = string(decision.OverallGrade)
	run.FinalConfidence = &final
	run.WasCapped = confidence.WasCapped
	run.Decision = encodeColumn(decision)
	run.Confidence = encodeColumn(confidence)
	run.SetValidationErrors(nil)

	if err := s.runs.Create(ctx, &run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run_persist_failed")
		return dto.GradingRunResponse{}, err
	}

	regrade := gc.submission.IsGraded()
	gradedAt := s.now()
	gc.submission.Status = models.SubmissionStatusGraded
	if final < s.cfg.ReviewThreshold {
		gc.submission.Status = models.SubmissionStatusNeedsReview
	}
	gc.submission.OverallGrade = string(decision.OverallGrade)
	gc.submission.Confidence = &final
	gc.submission.Feedback = decision.FeedbackSummary
	gc.submission.GradedAt = &gradedAt
	if err := s.submissions.Update(ctx, &gc.submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.GradingRunResponse{}, err
	}

	caps := confidence.CapNames()
	observability.ObserveConfidence(final, caps)
	logger.Info().
		Uint("run_id", run.ID).
		Str("grade", run.OverallGrade).
		Float64("confidence", final).
		Strs("caps", caps).
		Str("status", gc.submission.Status).
		Bool("regrade", regrade).
		Msg("grading completed")
	s.publish(ctx, gc, run, 0, 0, caps)

	span.SetAttributes(
		attribute.String("grading.grade", run.OverallGrade),
		attribute.Float64("grading.confidence", final),
		attribute.Bool("grading.capped", confidence.WasCapped),
	)

	response := dto.NewGradingRunResponse(run, s.cfg.ReviewThreshold)
	s.sanitize(response.Decision)
	return response, nil
}

func (s *gradingService) ListRuns(ctx context.Context, submissionID uint) ([]dto.GradingRunResponse, error) {
	if _, err := s.submissions.GetByID(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	runs, err := s.runs.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	responses := dto.NewGradingRunResponseSlice(runs, s.cfg.ReviewThreshold)
	for i := range responses {
		s.sanitize(responses[i].Decision)
	}
	return responses, nil
}

func (s *gradingService) inputRequest(gc gradingContext, requested grading.RequestedMode) grading.InputRequest {
	req := grading.InputRequest{
		RequestedMode: requested,
		ReadinessOK:   gc.report.OK,
	}
	if gc.run == nil {
		return req
	}

	metrics := gc.run.Metrics()
	req.PageImageCapable = pageImageCapable(gc.submission.FileMime) && len(gc.run.PageImageURLList()) > 0
	if metrics.ExtractedCharCount != nil {
		req.ExtractedChars = *metrics.ExtractedCharCount
	}
	if metrics.OverallConfidence != nil {
		req.ExtractionConfidence = *metrics.OverallConfidence
		req.HasExtractionConfidence = true
	}
	req.CoverOnly = metrics.IsCoverOnly()
	req.CoverMetadataReady = metrics.CoverMetadataReady
	return req
}

func (s *gradingService) signals(gc gradingContext) grading.ConclusionSignals {
	signals := grading.ConclusionSignals{
		Readiness: grading.BuildReadinessChecklist(gc.report, grading.ReadinessCheck{
			Name:   CheckCriteriaLocked,
			Passed: gc.submission.Assignment.CriteriaLocked,
		}),
		Alignment: grading.AlignCriteria(gc.codes, gc.submission.Assignment.BriefCriteriaCodeList()),
	}
	if gc.run != nil {
		signals.ExtractionConfidence = gc.run.OverallConfidence
		signals.ExtractionMode = gc.run.Mode
		signals.MissingModalities = gc.run.MissingModalities
	}
	return signals
}

func (s *gradingService) callGrader(ctx context.Context, gc gradingContext, input grading.GradingInputDecision) (ai.GradeResponse, error) {
	if s.cfg.GraderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GraderTimeout)
		defer cancel()
	}

	req := ai.GradeRequest{
		Mode:            string(input.Mode),
		AssignmentTitle: gc.submission.Assignment.Title,
		Brief:           gc.submission.Assignment.Description,
		CriteriaCodes:   gc.codes,
	}
	if gc.run != nil {
		req.ExtractedText = gc.run.ExtractedText
		if input.Mode == grading.InputModeRawPageImages {
			req.PageImageURLs = gc.run.PageImageURLList()
		}
	}

	return s.grader.Grade(ctx, req)
}

func (s *gradingService) publish(ctx context.Context, gc gradingContext, run models.GradingRun, blockers, validationErrors int, caps []string) {
	event := events.GradingRunEvent{
		RunID:           run.ID,
		SubmissionID:    gc.submission.ID,
		AssignmentID:    gc.submission.AssignmentID,
		Status:          run.Status,
		InputMode:       run.InputMode,
		OverallGrade:    run.OverallGrade,
		FinalConfidence: run.FinalConfidence,
		WasCapped:       run.WasCapped,
		CapsApplied:     caps,
		Blockers:        blockers,
		ValidationErrs:  validationErrors,
		RecordedAt:      s.now().UTC(),
		CorrelationID:   observability.CorrelationID(ctx),
	}
	if err := s.publisher.PublishGradingRun(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("run_id", run.ID).Msg("failed to publish grading run event")
	}
}

// sanitize strips markup from model-written text before it reaches a browser.
// The persisted audit record keeps the verbatim answer.
func (s *gradingService) sanitize(decision *grading.GradeDecision) {
	if decision == nil {
		return
	}
	decision.FeedbackSummary = strings.TrimSpace(s.sanitizer.Sanitize(decision.FeedbackSummary))
	for i, bullet := range decision.FeedbackBullets {
		decision.FeedbackBullets[i] = strings.TrimSpace(s.sanitizer.Sanitize(bullet))
	}
	for i := range decision.CriterionChecks {
		check := &decision.CriterionChecks[i]
		check.Rationale = strings.TrimSpace(s.sanitizer.Sanitize(check.Rationale))
		for j := range check.Evidence {
			check.Evidence[j].Quote = strings.TrimSpace(s.sanitizer.Sanitize(check.Evidence[j].Quote))
			check.Evidence[j].VisualDescription = strings.TrimSpace(s.sanitizer.Sanitize(check.Evidence[j].VisualDescription))
		}
	}
}

// pageImageCapable reports whether the submitted file type can be rendered as
// page images by the extraction worker.
func pageImageCapable(fileMime string) bool {
	detected := mimetype.Lookup(strings.TrimSpace(strings.ToLower(fileMime)))
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("application/pdf") || strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

func encodeColumn(value interface{}) datatypes.JSON {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
