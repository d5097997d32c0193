package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/peak-go-api/internal/dto"
	"github.com/noah-isme/peak-go-api/internal/service"
	"github.com/noah-isme/peak-go-api/internal/utils"
)

// EvaluationHandler exposes the evaluate and reset operations.
type EvaluationHandler struct {
	service   service.EvaluationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, validate *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the mutating endpoints. guards run before each handler, typically the role
// check and the rate limiter.
func (h *EvaluationHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Put("/evaluate/:paperId", chain(guards, h.evaluate)...)
	router.Put("/reset/:paperId", chain(guards, h.reset)...)
}

// RegisterHistory attaches the read-only run history endpoint.
func (h *EvaluationHandler) RegisterHistory(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/evaluations/:paperId/runs", chain(guards, h.history)...)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	paperID := strings.TrimSpace(c.Params("paperId"))

	if err := h.service.Evaluate(c.UserContext(), paperID); err != nil {
		switch {
		case errors.Is(err, service.ErrPaperNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "Paper not found")
		case errors.Is(err, service.ErrNoSubmissions):
			return utils.SendError(c, fiber.StatusBadRequest, "No submissions to evaluate")
		case errors.Is(err, service.ErrMalformedEvaluation):
			return utils.SendError(c, fiber.StatusInternalServerError, "AI evaluation failed: "+err.Error())
		case errors.Is(err, service.ErrScoringUnavailable):
			return utils.SendError(c, fiber.StatusInternalServerError, "Failed to process evaluation: "+err.Error())
		case errors.Is(err, service.ErrPersistenceFailed):
			return utils.SendError(c, fiber.StatusInternalServerError, "Failed to update paper with evaluations")
		case errors.Is(err, service.ErrPaperBusy):
			return utils.SendError(c, fiber.StatusInternalServerError, "Paper is being processed by another request")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("paper_id", paperID).Msg("failed to evaluate paper")
			return utils.SendError(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}

	return utils.SendSuccess(c, "Paper evaluated successfully", nil)
}

func (h *EvaluationHandler) reset(c *fiber.Ctx) error {
	paperID := strings.TrimSpace(c.Params("paperId"))

	if err := h.service.Reset(c.UserContext(), paperID); err != nil {
		switch {
		case errors.Is(err, service.ErrPaperNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "Paper not found")
		case errors.Is(err, service.ErrNoSubmissions):
			return utils.SendError(c, fiber.StatusBadRequest, "No submissions to evaluate")
		case errors.Is(err, service.ErrNotEvaluated):
			return utils.SendError(c, fiber.StatusBadRequest, "Paper has not been evaluated")
		case errors.Is(err, service.ErrPersistenceFailed):
			return utils.SendError(c, fiber.StatusInternalServerError, "Failed to reset evaluation for paper")
		case errors.Is(err, service.ErrPaperBusy):
			return utils.SendError(c, fiber.StatusInternalServerError, "Paper is being processed by another request")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("paper_id", paperID).Msg("failed to reset paper")
			return utils.SendError(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}

	return utils.SendSuccess(c, "Paper reset successfully", nil)
}

func (h *EvaluationHandler) history(c *fiber.Ctx) error {
	var filter dto.EvaluationRunFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validator.Struct(filter); err != nil {
		return sendValidationError(c, err)
	}

	paperID := strings.TrimSpace(c.Params("paperId"))
	runs, err := h.service.History(c.UserContext(), paperID, filter.Limit)
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "Paper not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("paper_id", paperID).Msg("failed to list evaluation runs")
		return utils.SendError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return utils.OK(c, runs, "evaluation runs retrieved", fiber.Map{"count": len(runs)})
}
