package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peak-go-api/internal/dto"
	"github.com/noah-isme/peak-go-api/internal/handler"
	"github.com/noah-isme/peak-go-api/internal/service"
)

type mockPaperService struct {
	err         error
	created     dto.CreatedResponse
	list        dto.PaperListResponse
	studentView dto.PaperStudentView
	lastCreate  dto.PaperCreateRequest
	lastAttempt dto.PaperAttemptRequest
	lastEmail   string
	lastExpired *bool
}

func (m *mockPaperService) Create(_ context.Context, payload dto.PaperCreateRequest) (dto.CreatedResponse, error) {
	m.lastCreate = payload
	return m.created, m.err
}

func (m *mockPaperService) TeacherView(context.Context, dto.PaperViewRequest) (dto.PaperTeacherView, error) {
	return dto.PaperTeacherView{}, m.err
}

func (m *mockPaperService) ListForTeacher(_ context.Context, email string) (dto.PaperListResponse, error) {
	m.lastEmail = email
	return m.list, m.err
}

func (m *mockPaperService) SetExpired(_ context.Context, _ string, expired bool) error {
	m.lastExpired = &expired
	return m.err
}

func (m *mockPaperService) ListForStudent(_ context.Context, email string) (dto.PaperListResponse, error) {
	m.lastEmail = email
	return m.list, m.err
}

func (m *mockPaperService) StudentView(context.Context, dto.PaperViewRequest) (dto.PaperStudentView, error) {
	return m.studentView, m.err
}

func (m *mockPaperService) AttemptView(context.Context, dto.PaperViewRequest) (dto.PaperAttemptView, error) {
	return dto.PaperAttemptView{}, m.err
}

func (m *mockPaperService) Attempt(_ context.Context, payload dto.PaperAttemptRequest) error {
	m.lastAttempt = payload
	return m.err
}

func paperApp(svc service.PaperService) *fiber.App {
	app := fiber.New()
	handler.NewPaperHandler(svc, validator.New(), zerolog.New(io.Discard)).Register(app.Group("/api"))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode, decodeEnvelope(t, resp.Body)
}

func TestPaperHandler_Create(t *testing.T) {
	svc := &mockPaperService{created: dto.CreatedResponse{ID: paperID}}
	app := paperApp(svc)

	status, payload := doJSON(t, app, fiber.MethodPost, "/api/create-paper", fiber.Map{
		"teacher_email": "teacher@school.test",
		"title":         "History quiz",
		"questions": []fiber.Map{
			{"order": 1, "question": "When did WW2 end?", "answer": "1945"},
		},
	})
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "Paper created successfully", payload.Message)
	require.JSONEq(t, `{"id":"`+paperID+`"}`, string(payload.Data))
	require.Equal(t, "History quiz", svc.lastCreate.Title)
	require.Len(t, svc.lastCreate.Questions, 1)
}

func TestPaperHandler_CreateRejectsMalformedBody(t *testing.T) {
	app := paperApp(&mockPaperService{})

	req := httptest.NewRequest(fiber.MethodPost, "/api/create-paper", bytes.NewBufferString("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPaperHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{service.ErrPaperNotFound, fiber.StatusNotFound, "Paper not found"},
		{service.ErrPaperForbidden, fiber.StatusForbidden, "Unauthorized"},
		{errors.New("mongo down"), fiber.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		app := paperApp(&mockPaperService{err: tc.err})

		status, payload := doJSON(t, app, fiber.MethodPost, "/api/paper/student-view", fiber.Map{
			"id":    paperID,
			"email": "student@school.test",
		})
		require.Equal(t, tc.status, status)
		require.Equal(t, tc.message, payload.Message)
	}
}

func TestPaperHandler_AttemptExpiredPaper(t *testing.T) {
	svc := &mockPaperService{err: service.ErrPaperExpired}
	app := paperApp(svc)

	status, payload := doJSON(t, app, fiber.MethodPut, "/api/attempted-paper", fiber.Map{
		"paper_id":      paperID,
		"student_email": "student@school.test",
		"answer":        []fiber.Map{{"order": 1, "answer": "1945"}},
	})
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "Paper has expired", payload.Message)
	require.Len(t, svc.lastAttempt.Answers, 1)
	require.Equal(t, "1945", svc.lastAttempt.Answers[0].Answer)
}

func TestPaperHandler_ExpireAndUnexpire(t *testing.T) {
	svc := &mockPaperService{}
	app := paperApp(svc)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPut, "/api/expire-paper/"+paperID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.lastExpired)
	require.True(t, *svc.lastExpired)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPut, "/api/unexpire-paper/"+paperID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.False(t, *svc.lastExpired)
}

func TestPaperHandler_ListRequiresEmail(t *testing.T) {
	svc := &mockPaperService{list: dto.PaperListResponse{Papers: []dto.PaperSummary{{ID: paperID, Title: "Quiz"}}}}
	app := paperApp(svc)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/teacher-papers", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/teacher-papers?email=teacher@school.test", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp.Body)
	require.EqualValues(t, 1, payload.Meta["count"])
	require.Equal(t, "teacher@school.test", svc.lastEmail)
}
