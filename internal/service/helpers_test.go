package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peak-go-api/internal/events"
	"github.com/noah-isme/peak-go-api/internal/models"
	"github.com/noah-isme/peak-go-api/internal/repository"
	"github.com/noah-isme/peak-go-api/pkg/ai"
)

const testPaperID = "65f1c0ffee0000000000abcd"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidate() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func testResponseValidator(t *testing.T) *ai.ResponseValidator {
	t.Helper()
	responseValidator, err := ai.NewResponseValidator()
	require.NoError(t, err)
	return responseValidator
}

func evaluationJSON(average float64, feedback string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"scores":{"clarity":%[1]g,"relevance":%[1]g,"accuracy":%[1]g,"completeness":%[1]g,"average":%[1]g},"feedback":%[2]q}`,
		average, feedback,
	))
}

type scriptedScorer struct {
	mu      sync.Mutex
	calls   []ai.ScoreRequest
	respond func(ctx context.Context, req ai.ScoreRequest) (json.RawMessage, error)
}

func (s *scriptedScorer) Provider() string {
	return "scripted"
}

func (s *scriptedScorer) Score(ctx context.Context, req ai.ScoreRequest) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.respond(ctx, req)
}

func (s *scriptedScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakePaperRepo keeps papers in memory and honours the version filter of UpdateEvaluation.
type fakePaperRepo struct {
	mu           sync.Mutex
	papers       map[string]models.Paper
	commits      []models.Paper
	updateCalls  int
	updateErr    error
	beforeUpdate func()
}

func newFakePaperRepo(papers ...models.Paper) *fakePaperRepo {
	repo := &fakePaperRepo{papers: make(map[string]models.Paper)}
	for _, paper := range papers {
		repo.papers[paper.ID] = paper
	}
	return repo
}

func (r *fakePaperRepo) get(id string) models.Paper {
	r.mu.Lock()
	defer r.mu.Unlock()
	paper := r.papers[id]
	paper.Submissions = paper.CloneSubmissions()
	return paper
}

func (r *fakePaperRepo) Create(ctx context.Context, paper *models.Paper) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paper.ID = fmt.Sprintf("%024x", len(r.papers)+1)
	r.papers[paper.ID] = *paper
	return paper.ID, nil
}

func (r *fakePaperRepo) GetByID(ctx context.Context, id string) (models.Paper, error) {
	if _, err := repository.ParseObjectID(id); err != nil {
		return models.Paper{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	paper, ok := r.papers[id]
	if !ok {
		return models.Paper{}, repository.ErrPaperNotFound
	}
	paper.Submissions = paper.CloneSubmissions()
	return paper, nil
}

func (r *fakePaperRepo) ListByTeacher(ctx context.Context, teacherEmail string) ([]models.Paper, error) {
	return r.ListByTeachers(ctx, []string{teacherEmail})
}

func (r *fakePaperRepo) ListByTeachers(ctx context.Context, teacherEmails []string) ([]models.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var papers []models.Paper
	for _, paper := range r.papers {
		for _, email := range teacherEmails {
			if paper.TeacherEmail == email {
				papers = append(papers, paper)
			}
		}
	}
	return papers, nil
}

func (r *fakePaperRepo) SetExpired(ctx context.Context, id string, expired bool) error {
	if _, err := repository.ParseObjectID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	paper, ok := r.papers[id]
	if !ok {
		return repository.ErrPaperNotFound
	}
	paper.Expired = expired
	r.papers[id] = paper
	return nil
}

func (r *fakePaperRepo) SaveSubmission(ctx context.Context, id string, submission models.StudentSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	paper, ok := r.papers[id]
	if !ok {
		return repository.ErrPaperNotFound
	}
	submissions := paper.CloneSubmissions()
	replaced := false
	for i := range submissions {
		if submissions[i].StudentEmail == submission.StudentEmail {
			submissions[i] = submission
			replaced = true
		}
	}
	if !replaced {
		submissions = append(submissions, submission)
	}
	paper.Submissions = submissions
	paper.Evaluated = false
	paper.Version++
	r.papers[id] = paper
	return nil
}

func (r *fakePaperRepo) UpdateEvaluation(ctx context.Context, id string, expectedVersion int64, submissions []models.StudentSubmission, evaluated bool) (int64, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return 0, r.updateErr
	}
	paper, ok := r.papers[id]
	if !ok || paper.Version != expectedVersion {
		return 0, nil
	}
	paper.Submissions = submissions
	paper.Evaluated = evaluated
	paper.Version++
	r.papers[id] = paper

	snapshot := paper
	snapshot.Submissions = paper.CloneSubmissions()
	r.commits = append(r.commits, snapshot)
	return 1, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs []models.EvaluationRun
}

func (r *fakeRunRepo) Create(ctx context.Context, run *models.EvaluationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = uint(len(r.runs) + 1)
	r.runs = append(r.runs, *run)
	return nil
}

func (r *fakeRunRepo) ListByPaper(ctx context.Context, paperID string, limit int) ([]models.EvaluationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var runs []models.EvaluationRun
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].PaperID == paperID {
			runs = append(runs, r.runs[i])
		}
	}
	return runs, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.PaperEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event events.PaperEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// samplePaper has three questions and one submission answering all of them.
func samplePaper() models.Paper {
	return models.Paper{
		ID:           testPaperID,
		TeacherEmail: "teacher@example.com",
		Title:        "History midterm",
		Questions: []models.Question{
			{Order: 1, Question: "When did WW2 end?", Answer: "1945"},
			{Order: 2, Question: "Who was the first US president?", Answer: "George Washington"},
			{Order: 3, Question: "What year did the Berlin wall fall?", Answer: "1989"},
		},
		Submissions: []models.StudentSubmission{
			{
				StudentEmail: "student@example.com",
				Answers: []models.StudentAnswer{
					{Order: 1, Answer: "1944"},
					{Order: 2, Answer: "Washington"},
					{Order: 3, Answer: "1989"},
				},
			},
		},
	}
}
