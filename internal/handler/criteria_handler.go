package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-go/internal/dto"
	"github.com/noah-isme/gema-grading-go/internal/service"
	"github.com/noah-isme/gema-grading-go/internal/utils"
)

// CriteriaHandler lets teachers lock the criteria set an assignment is graded against.
type CriteriaHandler struct {
	service service.CriteriaService
	logger  zerolog.Logger
}

// NewCriteriaHandler constructs the handler.
func NewCriteriaHandler(service service.CriteriaService, logger zerolog.Logger) *CriteriaHandler {
	return &CriteriaHandler{
		service: service,
		logger:  logger.With().Str("component", "criteria_handler").Logger(),
	}
}

// Register attaches criteria endpoints to the router group.
func (h *CriteriaHandler) Register(router fiber.Router) {
	router.Get("/assignments/:id/criteria", h.get)
	router.Put("/assignments/:id/criteria", h.lock)
}

func (h *CriteriaHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return h.fail(c, id, err)
	}
	return utils.SendSuccess(c, "criteria retrieved", response)
}

func (h *CriteriaHandler) lock(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.LockCriteriaRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Lock(withRequestContext(c), id, payload, actorFromContext(c))
	if err != nil {
		return h.fail(c, id, err)
	}
	return utils.SendSuccess(c, "criteria locked", response)
}

func (h *CriteriaHandler) fail(c *fiber.Ctx, id uint, err error) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrCriteriaAlreadyLocked):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCriterionCode), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Uint("assignment_id", id).Msg("failed to handle criteria request")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to handle criteria request")
	}
}
