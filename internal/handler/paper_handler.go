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

// PaperHandler wires question paper and attempt endpoints.
type PaperHandler struct {
	service   service.PaperService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPaperHandler constructs the handler.
func NewPaperHandler(service service.PaperService, validate *validator.Validate, logger zerolog.Logger) *PaperHandler {
	return &PaperHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "paper_handler").Logger(),
	}
}

// Register attaches the paper endpoints to the router group.
func (h *PaperHandler) Register(router fiber.Router) {
	router.Post("/create-paper", h.create)
	router.Post("/paper/teacher-view", h.teacherView)
	router.Get("/teacher-papers", h.teacherPapers)
	router.Put("/expire-paper/:paperId", h.expire)
	router.Put("/unexpire-paper/:paperId", h.unexpire)
	router.Get("/student-papers", h.studentPapers)
	router.Post("/paper/student-view", h.studentView)
	router.Post("/paper/attempt-view", h.attemptView)
	router.Put("/attempted-paper", h.attempt)
}

func (h *PaperHandler) create(c *fiber.Ctx) error {
	var payload dto.PaperCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err, "failed to create paper")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Paper created successfully", created)
}

func (h *PaperHandler) teacherView(c *fiber.Ctx) error {
	var payload dto.PaperViewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	view, err := h.service.TeacherView(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err, "failed to load paper")
	}
	return utils.SendSuccess(c, "paper retrieved", view)
}

func (h *PaperHandler) teacherPapers(c *fiber.Ctx) error {
	email, err := h.emailQuery(c)
	if err != nil {
		return sendValidationError(c, err)
	}

	list, err := h.service.ListForTeacher(c.UserContext(), email)
	if err != nil {
		return h.fail(c, err, "failed to list papers")
	}
	return utils.OK(c, list, "papers retrieved", fiber.Map{"count": len(list.Papers)})
}

func (h *PaperHandler) expire(c *fiber.Ctx) error {
	return h.setExpired(c, true, "Paper expired successfully")
}

func (h *PaperHandler) unexpire(c *fiber.Ctx) error {
	return h.setExpired(c, false, "Paper unexpired successfully")
}

func (h *PaperHandler) setExpired(c *fiber.Ctx, expired bool, message string) error {
	paperID := strings.TrimSpace(c.Params("paperId"))
	if err := h.service.SetExpired(c.UserContext(), paperID, expired); err != nil {
		return h.fail(c, err, "failed to update paper")
	}
	return utils.SendSuccess(c, message, nil)
}

func (h *PaperHandler) studentPapers(c *fiber.Ctx) error {
	email, err := h.emailQuery(c)
	if err != nil {
		return sendValidationError(c, err)
	}

	list, err := h.service.ListForStudent(c.UserContext(), email)
	if err != nil {
		return h.fail(c, err, "failed to list papers")
	}
	return utils.OK(c, list, "papers retrieved", fiber.Map{"count": len(list.Papers)})
}

func (h *PaperHandler) studentView(c *fiber.Ctx) error {
	var payload dto.PaperViewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	view, err := h.service.StudentView(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err, "failed to load paper")
	}
	return utils.SendSuccess(c, "paper retrieved", view)
}

func (h *PaperHandler) attemptView(c *fiber.Ctx) error {
	var payload dto.PaperViewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	view, err := h.service.AttemptView(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err, "failed to load paper")
	}
	return utils.SendSuccess(c, "paper retrieved", view)
}

func (h *PaperHandler) attempt(c *fiber.Ctx) error {
	var payload dto.PaperAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.Attempt(c.UserContext(), payload); err != nil {
		return h.fail(c, err, "failed to save attempt")
	}
	return utils.SendSuccess(c, "Paper attempted successfully", nil)
}

func (h *PaperHandler) emailQuery(c *fiber.Ctx) (string, error) {
	query := dto.EmailQuery{Email: strings.TrimSpace(c.Query("email"))}
	if err := h.validator.Struct(query); err != nil {
		return "", err
	}
	return query.Email, nil
}

func (h *PaperHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrPaperNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Paper not found")
	case errors.Is(err, service.ErrPaperForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "Unauthorized")
	case errors.Is(err, service.ErrPaperExpired):
		return utils.SendError(c, fiber.StatusConflict, "Paper has expired")
	case isValidationError(err):
		return sendValidationError(c, err)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
