package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

const paperID = "65f1c0ffee0000000000abcd"

type mockEvaluationService struct {
	evaluateErr error
	resetErr    error
	historyErr  error
	runs        []dto.EvaluationRunResponse
	lastPaperID string
	lastLimit   int
}

func (m *mockEvaluationService) Evaluate(_ context.Context, id string) error {
	m.lastPaperID = id
	return m.evaluateErr
}

func (m *mockEvaluationService) Reset(_ context.Context, id string) error {
	m.lastPaperID = id
	return m.resetErr
}

func (m *mockEvaluationService) History(_ context.Context, id string, limit int) ([]dto.EvaluationRunResponse, error) {
	m.lastPaperID = id
	m.lastLimit = limit
	return m.runs, m.historyErr
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]string      `json:"details"`
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var payload envelope
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload
}

func evaluationApp(svc service.EvaluationService, guards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	h := handler.NewEvaluationHandler(svc, validator.New(), zerolog.New(io.Discard))
	api := app.Group("/api")
	h.Register(api, guards...)
	h.RegisterHistory(api)
	return app
}

func TestEvaluationHandler_EvaluateSuccess(t *testing.T) {
	svc := &mockEvaluationService{}
	app := evaluationApp(svc)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPut, "/api/evaluate/"+paperID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp.Body)
	require.True(t, payload.Success)
	require.Equal(t, "Paper evaluated successfully", payload.Message)
	require.Equal(t, paperID, svc.lastPaperID)
}

func TestEvaluationHandler_EvaluateErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", service.ErrPaperNotFound, fiber.StatusNotFound, "Paper not found"},
		{"no submissions", service.ErrNoSubmissions, fiber.StatusBadRequest, "No submissions to evaluate"},
		{
			"malformed",
			fmt.Errorf("validate answer 1 of a@b.c: %w", service.ErrMalformedEvaluation),
			fiber.StatusInternalServerError,
			"AI evaluation failed: validate answer 1 of a@b.c: " + service.ErrMalformedEvaluation.Error(),
		},
		{
			"unavailable",
			fmt.Errorf("score answer 1 of a@b.c: %w", service.ErrScoringUnavailable),
			fiber.StatusInternalServerError,
			"Failed to process evaluation: score answer 1 of a@b.c: " + service.ErrScoringUnavailable.Error(),
		},
		{"persistence", service.ErrPersistenceFailed, fiber.StatusInternalServerError, "Failed to update paper with evaluations"},
		{"busy", service.ErrPaperBusy, fiber.StatusInternalServerError, "Paper is being processed by another request"},
		{"unexpected", fmt.Errorf("boom"), fiber.StatusInternalServerError, "Internal server error"},
		{"lock backend down", fmt.Errorf("acquire paper lock: %w", errors.New("connection refused")), fiber.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := evaluationApp(&mockEvaluationService{evaluateErr: tc.err})

			resp, err := app.Test(httptest.NewRequest(fiber.MethodPut, "/api/evaluate/"+paperID, nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			payload := decodeEnvelope(t, resp.Body)
			require.False(t, payload.Success)
			require.Equal(t, tc.message, payload.Message)
		})
	}
}

func TestEvaluationHandler_ResetErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{nil, fiber.StatusOK, "Paper reset successfully"},
		{service.ErrPaperNotFound, fiber.StatusNotFound, "Paper not found"},
		{service.ErrNoSubmissions, fiber.StatusBadRequest, "No submissions to evaluate"},
		{service.ErrNotEvaluated, fiber.StatusBadRequest, "Paper has not been evaluated"},
		{service.ErrPersistenceFailed, fiber.StatusInternalServerError, "Failed to reset evaluation for paper"},
	}

	for _, tc := range cases {
		app := evaluationApp(&mockEvaluationService{resetErr: tc.err})

		resp, err := app.Test(httptest.NewRequest(fiber.MethodPut, "/api/reset/"+paperID, nil))
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode)
		require.Equal(t, tc.message, decodeEnvelope(t, resp.Body).Message)
	}
}

func TestEvaluationHandler_GuardsRunBeforeHandler(t *testing.T) {
	svc := &mockEvaluationService{}
	deny := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusForbidden)
	}
	app := evaluationApp(svc, deny)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPut, "/api/evaluate/"+paperID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Empty(t, svc.lastPaperID)
}

func TestEvaluationHandler_History(t *testing.T) {
	svc := &mockEvaluationService{runs: []dto.EvaluationRunResponse{
		{ID: 2, PaperID: paperID, Action: "evaluate", Status: "succeeded"},
		{ID: 1, PaperID: paperID, Action: "reset", Status: "failed", Error: "paper has not been evaluated"},
	}}
	app := evaluationApp(svc)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/evaluations/"+paperID+"/runs?limit=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp.Body)
	require.EqualValues(t, 2, payload.Meta["count"])
	require.Equal(t, 5, svc.lastLimit)

	var runs []dto.EvaluationRunResponse
	require.NoError(t, json.Unmarshal(payload.Data, &runs))
	require.Len(t, runs, 2)
	require.Equal(t, "evaluate", runs[0].Action)
}

func TestEvaluationHandler_HistoryRejectsBadLimit(t *testing.T) {
	app := evaluationApp(&mockEvaluationService{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/evaluations/"+paperID+"/runs?limit=500", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	payload := decodeEnvelope(t, resp.Body)
	require.Equal(t, "lte=100", payload.Details["Limit"])
}

func TestEvaluationHandler_HistoryUnknownPaper(t *testing.T) {
	app := evaluationApp(&mockEvaluationService{historyErr: service.ErrPaperNotFound})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/evaluations/nope/runs", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
