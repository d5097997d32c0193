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

// UserHandler wires user-type and teacher-student association endpoints.
type UserHandler struct {
	service   service.UserService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(service service.UserService, validate *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches the endpoints to the router group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/add-type", h.addType)
	router.Get("/get-type", h.getType)
	router.Post("/add-tsa", h.associate)
	router.Get("/get-teachers", h.teachers)
	router.Get("/get-students", h.students)
}

func (h *UserHandler) addType(c *fiber.Ctx) error {
	var payload dto.UserTypeCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.service.AddType(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err, "failed to add user type")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user type added", created)
}

func (h *UserHandler) getType(c *fiber.Ctx) error {
	email, err := h.emailQuery(c)
	if err != nil {
		return sendValidationError(c, err)
	}

	userType, err := h.service.GetType(c.UserContext(), email)
	if err != nil {
		return h.fail(c, err, "failed to load user type")
	}
	return utils.SendSuccess(c, "user type retrieved", userType)
}

func (h *UserHandler) associate(c *fiber.Ctx) error {
	var payload dto.AssociationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.service.Associate(c.UserContext(), payload)
	if err != nil {
		return h.fail(c, err, "failed to add association")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "association added", created)
}

func (h *UserHandler) teachers(c *fiber.Ctx) error {
	email, err := h.emailQuery(c)
	if err != nil {
		return sendValidationError(c, err)
	}

	teachers, err := h.service.TeachersOf(c.UserContext(), email)
	if err != nil {
		return h.fail(c, err, "failed to list teachers")
	}
	return utils.SendSuccess(c, "teachers retrieved", teachers)
}

func (h *UserHandler) students(c *fiber.Ctx) error {
	email, err := h.emailQuery(c)
	if err != nil {
		return sendValidationError(c, err)
	}

	students, err := h.service.StudentsOf(c.UserContext(), email)
	if err != nil {
		return h.fail(c, err, "failed to list students")
	}
	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *UserHandler) emailQuery(c *fiber.Ctx) (string, error) {
	query := dto.EmailQuery{Email: strings.TrimSpace(c.Query("email"))}
	if err := h.validator.Struct(query); err != nil {
		return "", err
	}
	return query.Email, nil
}

func (h *UserHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrUserExists):
		return utils.SendError(c, fiber.StatusConflict, "User already exists")
	case errors.Is(err, service.ErrAssociationExists):
		return utils.SendError(c, fiber.StatusBadRequest, "Association already exists")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Student not found")
	case errors.Is(err, service.ErrTeacherNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Teacher not found")
	case isValidationError(err):
		return sendValidationError(c, err)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
