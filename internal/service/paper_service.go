package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/peak-go-api/internal/dto"
	"github.com/noah-isme/peak-go-api/internal/models"
	"github.com/noah-isme/peak-go-api/internal/repository"
)

var (
	// ErrPaperForbidden indicates the viewer may not see the paper.
	ErrPaperForbidden = errors.New("unauthorized")
	// ErrPaperExpired indicates the paper no longer accepts attempts.
	ErrPaperExpired = errors.New("paper has expired")
)

// PaperService manages question papers and student attempts.
type PaperService interface {
	Create(ctx context.Context, payload dto.PaperCreateRequest) (dto.CreatedResponse, error)
	TeacherView(ctx context.Context, payload dto.PaperViewRequest) (dto.PaperTeacherView, error)
	ListForTeacher(ctx context.Context, email string) (dto.PaperListResponse, error)
	SetExpired(ctx context.Context, paperID string, expired bool) error
	ListForStudent(ctx context.Context, email string) (dto.PaperListResponse, error)
	StudentView(ctx context.Context, payload dto.PaperViewRequest) (dto.PaperStudentView, error)
	AttemptView(ctx context.Context, payload dto.PaperViewRequest) (dto.PaperAttemptView, error)
	Attempt(ctx context.Context, payload dto.PaperAttemptRequest) error
}

type paperService struct {
	papers       repository.PaperRepository
	associations repository.AssociationRepository
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
}

// NewPaperService constructs the paper service.
func NewPaperService(papers repository.PaperRepository, associations repository.AssociationRepository, validate *validator.Validate, logger zerolog.Logger) PaperService {
	return &paperService{
		papers:       papers,
		associations: associations,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "paper_service").Logger(),
	}
}

func (s *paperService) Create(ctx context.Context, payload dto.PaperCreateRequest) (dto.CreatedResponse, error) {
	payload.TeacherEmail = normalizeEmail(payload.TeacherEmail)
	// Titles are rendered in paper listings; question and answer text is kept as written.
	payload.Title = strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if err := s.validator.Struct(payload); err != nil {
		return dto.CreatedResponse{}, err
	}

	questions := make([]models.Question, 0, len(payload.Questions))
	for _, question := range payload.Questions {
		questions = append(questions, models.Question{
			Order:    question.Order,
			Question: strings.TrimSpace(question.Question),
			Answer:   strings.TrimSpace(question.Answer),
		})
	}
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })

	paper := &models.Paper{
		TeacherEmail: payload.TeacherEmail,
		Title:        payload.Title,
		Questions:    questions,
		Submissions:  []models.StudentSubmission{},
	}

	id, err := s.papers.Create(ctx, paper)
	if err != nil {
		return dto.CreatedResponse{}, err
	}

	s.logger.Info().Str("paper_id", id).Str("teacher_email", paper.TeacherEmail).Int("questions", len(questions)).Msg("paper created")
	return dto.CreatedResponse{ID: id}, nil
}

func (s *paperService) TeacherView(ctx context.Context, payload dto.PaperViewRequest) (dto.PaperTeacherView, error) {
	paper, err := s.load(ctx, payload)
	if err != nil {
		return dto.PaperTeacherView{}, err
	}
	if paper.TeacherEmail != normalizeEmail(payload.Email) {
		return dto.PaperTeacherView{}, ErrPaperForbidden
	}

	return dto.PaperTeacherView{Paper: dto.NewPaperDetail(paper)}, nil
}

func (s *paperService) ListForTeacher(ctx context.Context, email string) (dto.PaperListResponse, error) {
	papers, err := s.papers.ListByTeacher(ctx, normalizeEmail(email))
	if err != nil {
		return dto.PaperListResponse{}, err
	}

	summaries := make([]dto.PaperSummary, 0, len(papers))
	for _, paper := range papers {
		summaries = append(summaries, paperSummary(paper, models.UserTypeTeacher))
	}
	return dto.PaperListResponse{Papers: summaries}, nil
}

func (s *paperService) SetExpired(ctx context.Context, paperID string, expired bool) error {
	if err := s.papers.SetExpired(ctx, paperID, expired); err != nil {
		return mapPaperError(err)
	}
	return nil
}

func (s *paperService) ListForStudent(ctx context.Context, email string) (dto.PaperListResponse, error) {
	email = normalizeEmail(email)
	associations, err := s.associations.ListByStudent(ctx, email)
	if err != nil {
		return dto.PaperListResponse{}, err
	}
	if len(associations) == 0 {
		return dto.PaperListResponse{Papers: []dto.PaperSummary{}}, nil
	}

	teachers := make([]string, 0, len(associations))
	for _, association := range associations {
		teachers = append(teachers, association.TeacherEmail)
	}

	papers, err := s.papers.ListByTeachers(ctx, teachers)
	if err != nil {
		return dto.PaperListResponse{}, err
	}

	summaries := make([]dto.PaperSummary, 0, len(papers))
	for _, paper := range papers {
		summary := paperSummary(paper, models.UserTypeStudent)
		_, attempted := paper.SubmissionFor(email)
		summary.Attempted = &attempted
		summaries = append(summaries, summary)
	}
	return dto.PaperListResponse{Papers: summaries}, nil
}

func (s *paperService) StudentView(ctx context.Context, payload dto.PaperViewRequest) (dto.PaperStudentView, error) {
	paper, err := s.load(ctx, payload)
	if err != nil {
		return dto.PaperStudentView{}, err
	}

	submission, ok := paper.SubmissionFor(normalizeEmail(payload.Email))
	if !ok {
		return dto.PaperStudentView{}, ErrPaperForbidden
	}

	answers := make(map[int]models.StudentAnswer, len(submission.Answers))
	for _, answer := range submission.Answers {
		answers[answer.Order] = answer
	}

	entries := make([]dto.QuestionAndAnswer, 0, len(paper.Questions))
	for _, question := range paper.Questions {
		entry := dto.QuestionAndAnswer{Question: question.Question}
		if answer, ok := answers[question.Order]; ok {
			text, scores, feedback := answer.Answer, answer.Scores, answer.Feedback
			entry.Answer = &text
			entry.Scores = &scores
			entry.Feedback = &feedback
		}
		entries = append(entries, entry)
	}

	return dto.PaperStudentView{
		Title:      paper.Title,
		Expired:    paper.Expired,
		Evaluated:  paper.Evaluated,
		QsAndAns:   entries,
		TotalScore: submission.TotalScore,
	}, nil
}

func (s *paperService) AttemptView(ctx context.Context, payload dto.PaperViewRequest) (dto.PaperAttemptView, error) {
	paper, err := s.load(ctx, payload)
	if err != nil {
		return dto.PaperAttemptView{}, err
	}

	questions := make([]dto.AttemptQuestion, 0, len(paper.Questions))
	for _, question := range paper.Questions {
		questions = append(questions, dto.AttemptQuestion{Order: question.Order, Question: question.Question})
	}
	return dto.PaperAttemptView{Title: paper.Title, Questions: questions}, nil
}

// Attempt stores the student's answers with zeroed scores. An earlier attempt by the same student
// is replaced and the paper returns to the ungraded state.
func (s *paperService) Attempt(ctx context.Context, payload dto.PaperAttemptRequest) error {
	payload.StudentEmail = normalizeEmail(payload.StudentEmail)
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	paper, err := s.papers.GetByID(ctx, payload.PaperID)
	if err != nil {
		return mapPaperError(err)
	}
	if paper.Expired {
		return ErrPaperExpired
	}

	answers := make([]models.StudentAnswer, 0, len(payload.Answers))
	for _, answer := range payload.Answers {
		answers = append(answers, models.StudentAnswer{Order: answer.Order, Answer: answer.Answer})
	}

	submission := models.StudentSubmission{
		StudentEmail: payload.StudentEmail,
		Answers:      answers,
	}
	if err := s.papers.SaveSubmission(ctx, payload.PaperID, submission); err != nil {
		return mapPaperError(err)
	}

	s.logger.Info().Str("paper_id", payload.PaperID).Str("student_email", submission.StudentEmail).Int("answers", len(answers)).Msg("paper attempted")
	return nil
}

// load validates the view request after normalizing its email, so callers must compare against
// normalizeEmail(payload.Email) themselves.
func (s *paperService) load(ctx context.Context, payload dto.PaperViewRequest) (models.Paper, error) {
	payload.Email = normalizeEmail(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		return models.Paper{}, err
	}

	paper, err := s.papers.GetByID(ctx, payload.ID)
	if err != nil {
		return models.Paper{}, mapPaperError(err)
	}
	return paper, nil
}

func paperSummary(paper models.Paper, userType string) dto.PaperSummary {
	return dto.PaperSummary{
		ID:        paper.ID,
		Title:     paper.Title,
		Expired:   paper.Expired,
		Evaluated: paper.Evaluated,
		UserType:  userType,
	}
}

func mapPaperError(err error) error {
	if errors.Is(err, repository.ErrPaperNotFound) || errors.Is(err, repository.ErrInvalidPaperID) {
		return ErrPaperNotFound
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
