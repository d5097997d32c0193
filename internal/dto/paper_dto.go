package dto

import (
	"time"

	"github.com/noah-isme/peak-go-api/internal/models"
)

// QuestionInput is one question of a new paper.
type QuestionInput struct {
	Order    int    `json:"order" validate:"gte=0"`
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// PaperCreateRequest creates a question paper.
type PaperCreateRequest struct {
	TeacherEmail string          `json:"teacher_email" validate:"required,email"`
	Title        string          `json:"title" validate:"required,max=255"`
	Questions    []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// PaperViewRequest identifies a paper and the viewer asking for it.
type PaperViewRequest struct {
	ID    string `json:"id" validate:"required,len=24,hexadecimal"`
	Email string `json:"email" validate:"required,email"`
}

// EmailQuery carries the ?email= filter used by the listing routes.
type EmailQuery struct {
	Email string `query:"email" validate:"required,email"`
}

// AnswerInput is one answer of an attempt.
type AnswerInput struct {
	Order  int    `json:"order" validate:"gte=0"`
	Answer string `json:"answer"`
}

// PaperAttemptRequest stores a student's answers for a paper.
type PaperAttemptRequest struct {
	PaperID      string        `json:"paper_id" validate:"required,len=24,hexadecimal"`
	StudentEmail string        `json:"student_email" validate:"required,email"`
	Answers      []AnswerInput `json:"answer" validate:"required,min=1,dive"`
}

// PaperSummary is a paper row in the teacher or student listing.
type PaperSummary struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Expired   bool   `json:"expired"`
	Evaluated bool   `json:"evaluated"`
	UserType  string `json:"user_type"`
	Attempted *bool  `json:"attempted,omitempty"`
}

// PaperListResponse wraps a paper listing.
type PaperListResponse struct {
	Papers []PaperSummary `json:"papers"`
}

// PaperTeacherView is the full paper as seen by its owner.
type PaperTeacherView struct {
	Paper PaperDetail `json:"paper"`
}

// PaperDetail carries every stored field of a paper except its identifier.
type PaperDetail struct {
	TeacherEmail string                     `json:"teacher_email"`
	Title        string                     `json:"title"`
	Evaluated    bool                       `json:"evaluated"`
	Expired      bool                       `json:"expired"`
	Questions    []models.Question          `json:"questions"`
	Submissions  []models.StudentSubmission `json:"submissions"`
	EvaluatedAt  *time.Time                 `json:"evaluated_at,omitempty"`
}

// QuestionAndAnswer joins a question with one student's graded answer.
type QuestionAndAnswer struct {
	Question string        `json:"question"`
	Answer   *string       `json:"answer,omitempty"`
	Scores   *models.Score `json:"scores,omitempty"`
	Feedback *string       `json:"feedback,omitempty"`
}

// PaperStudentView is a paper as seen by a student who attempted it.
type PaperStudentView struct {
	Title      string              `json:"title"`
	Expired    bool                `json:"expired"`
	Evaluated  bool                `json:"evaluated"`
	QsAndAns   []QuestionAndAnswer `json:"qs_and_ans"`
	TotalScore float64             `json:"total_score"`
}

// AttemptQuestion is a question without its reference answer.
type AttemptQuestion struct {
	Order    int    `json:"order"`
	Question string `json:"question"`
}

// PaperAttemptView is what a student sees before answering.
type PaperAttemptView struct {
	Title     string            `json:"title"`
	Questions []AttemptQuestion `json:"questions"`
}

// NewPaperDetail maps a stored paper to the owner's view.
func NewPaperDetail(paper models.Paper) PaperDetail {
	questions := paper.Questions
	if questions == nil {
		questions = []models.Question{}
	}
	submissions := paper.Submissions
	if submissions == nil {
		submissions = []models.StudentSubmission{}
	}

	return PaperDetail{
		TeacherEmail: paper.TeacherEmail,
		Title:        paper.Title,
		Evaluated:    paper.Evaluated,
		Expired:      paper.Expired,
		Questions:    questions,
		Submissions:  submissions,
		EvaluatedAt:  paper.EvaluatedAt,
	}
}
