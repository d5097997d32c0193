package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/peak-go-api/internal/dto"
	"github.com/noah-isme/peak-go-api/internal/models"
	"github.com/noah-isme/peak-go-api/internal/repository"
)

var (
	// ErrUserExists indicates the email already carries a role.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound indicates no role is recorded for the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrAssociationExists indicates the teacher and student are already linked.
	ErrAssociationExists = errors.New("association already exists")
	// ErrStudentNotFound indicates the student email is not registered as a student.
	ErrStudentNotFound = errors.New("student not found")
	// ErrTeacherNotFound indicates the teacher email is not registered as a teacher.
	ErrTeacherNotFound = errors.New("teacher not found")
)

// UserService manages user roles and teacher-student associations.
type UserService interface {
	AddType(ctx context.Context, payload dto.UserTypeCreateRequest) (dto.CreatedResponse, error)
	GetType(ctx context.Context, email string) (dto.UserTypeResponse, error)
	Associate(ctx context.Context, payload dto.AssociationCreateRequest) (dto.CreatedResponse, error)
	TeachersOf(ctx context.Context, studentEmail string) ([]string, error)
	StudentsOf(ctx context.Context, teacherEmail string) ([]string, error)
}

type userService struct {
	types        repository.UserTypeRepository
	associations repository.AssociationRepository
	validator    *validator.Validate
	logger       zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(types repository.UserTypeRepository, associations repository.AssociationRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		types:        types,
		associations: associations,
		validator:    validate,
		logger:       logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) AddType(ctx context.Context, payload dto.UserTypeCreateRequest) (dto.CreatedResponse, error) {
	payload.Email = normalizeEmail(payload.Email)
	payload.UserType = strings.ToLower(strings.TrimSpace(payload.UserType))
	if err := s.validator.Struct(payload); err != nil {
		return dto.CreatedResponse{}, err
	}

	email := payload.Email
	_, err := s.types.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return dto.CreatedResponse{}, ErrUserExists
	case !errors.Is(err, repository.ErrUserTypeNotFound):
		return dto.CreatedResponse{}, err
	}

	id, err := s.types.Create(ctx, &models.UserType{Email: email, Type: payload.UserType})
	if errors.Is(err, repository.ErrUserTypeExists) {
		return dto.CreatedResponse{}, ErrUserExists
	}
	if err != nil {
		return dto.CreatedResponse{}, err
	}
	return dto.CreatedResponse{ID: id}, nil
}

func (s *userService) GetType(ctx context.Context, email string) (dto.UserTypeResponse, error) {
	userType, err := s.types.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserTypeNotFound) {
			return dto.UserTypeResponse{}, ErrUserNotFound
		}
		return dto.UserTypeResponse{}, err
	}
	return dto.UserTypeResponse{Type: userType.Type}, nil
}

func (s *userService) Associate(ctx context.Context, payload dto.AssociationCreateRequest) (dto.CreatedResponse, error) {
	payload.TeacherEmail = normalizeEmail(payload.TeacherEmail)
	payload.StudentEmail = normalizeEmail(payload.StudentEmail)
	if err := s.validator.Struct(payload); err != nil {
		return dto.CreatedResponse{}, err
	}

	teacher, student := payload.TeacherEmail, payload.StudentEmail

	exists, err := s.associations.Exists(ctx, teacher, student)
	if err != nil {
		return dto.CreatedResponse{}, err
	}
	if exists {
		return dto.CreatedResponse{}, ErrAssociationExists
	}

	isStudent, err := s.types.Exists(ctx, student, models.UserTypeStudent)
	if err != nil {
		return dto.CreatedResponse{}, err
	}
	if !isStudent {
		return dto.CreatedResponse{}, ErrStudentNotFound
	}

	isTeacher, err := s.types.Exists(ctx, teacher, models.UserTypeTeacher)
	if err != nil {
		return dto.CreatedResponse{}, err
	}
	if !isTeacher {
		return dto.CreatedResponse{}, ErrTeacherNotFound
	}

	id, err := s.associations.Create(ctx, &models.TeacherStudentAssociation{TeacherEmail: teacher, StudentEmail: student})
	if errors.Is(err, repository.ErrAssociationExists) {
		return dto.CreatedResponse{}, ErrAssociationExists
	}
	if err != nil {
		return dto.CreatedResponse{}, err
	}

	s.logger.Info().Str("teacher_email", teacher).Str("student_email", student).Msg("association created")
	return dto.CreatedResponse{ID: id}, nil
}

func (s *userService) TeachersOf(ctx context.Context, studentEmail string) ([]string, error) {
	associations, err := s.associations.ListByStudent(ctx, normalizeEmail(studentEmail))
	if err != nil {
		return nil, err
	}

	teachers := make([]string, 0, len(associations))
	for _, association := range associations {
		teachers = append(teachers, association.TeacherEmail)
	}
	return teachers, nil
}

func (s *userService) StudentsOf(ctx context.Context, teacherEmail string) ([]string, error) {
	associations, err := s.associations.ListByTeacher(ctx, normalizeEmail(teacherEmail))
	if err != nil {
		return nil, err
	}

	students := make([]string, 0, len(associations))
	for _, association := range associations {
		students = append(students, association.StudentEmail)
	}
	return students, nil
}
