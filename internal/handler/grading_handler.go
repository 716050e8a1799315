package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-go/internal/dto"
	"github.com/noah-isme/gema-grading-go/internal/service"
	"github.com/noah-isme/gema-grading-go/internal/utils"
)

// GradingHandler exposes the grading pipeline to teachers and admins.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the read endpoints to the router group. The grade
// endpoint is registered separately so it can carry its own rate limit.
func (h *GradingHandler) Register(router fiber.Router, gradeMiddleware ...fiber.Handler) {
	router.Get("/submissions/:id/readiness", h.readiness)
	router.Get("/submissions/:id/runs", h.runs)

	handlers := append(append([]fiber.Handler{}, gradeMiddleware...), h.grade)
	router.Post("/submissions/:id/grade", handlers...)
}

func (h *GradingHandler) readiness(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.CheckReadiness(withRequestContext(c), id)
	if err != nil {
		return h.fail(c, id, err, "failed to evaluate readiness")
	}

	return utils.SendSuccess(c, "readiness evaluated", response)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeSubmissionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if payload.Mode == "" {
		payload.Mode = c.Query("mode")
	}

	response, err := h.service.Grade(withRequestContext(c), id, payload, actorFromContext(c))
	if err != nil {
		return h.fail(c, id, err, "failed to grade submission")
	}

	message := "submission graded"
	if response.NeedsReview {
		message = "submission graded; confidence requires review"
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, response)
}

func (h *GradingHandler) runs(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	runs, err := h.service.ListRuns(withRequestContext(c), id)
	if err != nil {
		return h.fail(c, id, err, "failed to list grading runs")
	}

	return utils.SendSuccess(c, "grading runs retrieved", runs)
}

func (h *GradingHandler) fail(c *fiber.Ctx, id uint, err error, fallback string) error {
	var blocked *service.GradingBlockedError
	var rejected *service.DecisionRejectedError

	switch {
	case errors.As(err, &blocked):
		return utils.SendErrorWithData(c, fiber.StatusConflict, "grading blocked by extraction readiness", fiber.Map{
			"run_id": blocked.RunID,
			"report": blocked.Report,
		})
	case errors.As(err, &rejected):
		return utils.SendErrorWithData(c, fiber.StatusUnprocessableEntity, "model decision failed validation", fiber.Map{
			"run_id": rejected.RunID,
			"errors": rejected.Errors,
		})
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrCriteriaNotLocked):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGraderUnavailable):
		requestLogger(h.logger, c).Warn().Err(err).Uint("submission_id", id).Msg("grader unavailable")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "grader unavailable")
	case errors.Is(err, service.ErrInvalidInputMode), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
