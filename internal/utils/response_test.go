package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peak-go-api/internal/utils"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]string      `json:"details"`
}

func TestOKCarriesMetaAndDefaultMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.OK(c, []string{"65f1c0ffee0000000000abcd"}, "", fiber.Map{"count": 1})
	})

	payload := call(t, app, fiber.StatusOK)
	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.JSONEq(t, `["65f1c0ffee0000000000abcd"]`, string(payload.Data))
	require.EqualValues(t, 1, payload.Meta["count"])
}

func TestSendSuccessWithStatusOmitsEmptyData(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Paper created successfully", nil)
	})

	payload := call(t, app, fiber.StatusCreated)
	require.True(t, payload.Success)
	require.Equal(t, "Paper created successfully", payload.Message)
	require.Empty(t, payload.Data)
	require.Nil(t, payload.Meta)
}

func TestFailCarriesFieldDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", map[string]string{"teacher_email": "email"})
	})

	payload := call(t, app, fiber.StatusBadRequest)
	require.False(t, payload.Success)
	require.Equal(t, "invalid payload", payload.Message)
	require.Equal(t, "email", payload.Details["teacher_email"])
	require.Empty(t, payload.Data)
}

func TestSendErrorDefaultsMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusInternalServerError, "")
	})

	payload := call(t, app, fiber.StatusInternalServerError)
	require.Equal(t, "error", payload.Message)
	require.Nil(t, payload.Details)
}

func call(t *testing.T, app *fiber.App, wantStatus int) envelope {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}
