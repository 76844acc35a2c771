package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renthavenhq/renthaven/internal/apperr"
)

func record(t *testing.T, fn func(c echo.Context) error) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, fn(c))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestOK(t *testing.T) {
	rec, body := record(t, func(c echo.Context) error {
		return OK(c, echo.Map{"answer": 42})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestFail_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusUnprocessableEntity},
		{apperr.StateConflict("nope"), http.StatusUnprocessableEntity},
		{apperr.InsufficientFunds("broke"), http.StatusUnprocessableEntity},
		{apperr.Authorization("denied"), http.StatusForbidden},
		{apperr.NotFound("gone"), http.StatusNotFound},
		{apperr.InvalidEscrowState("released"), http.StatusConflict},
		{apperr.Gateway("upstream", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("raw"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec, body := record(t, func(c echo.Context) error {
			return Fail(c, tc.err)
		})
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
		assert.Equal(t, false, body["success"])
	}
}

func TestFail_InternalNeverLeaksCause(t *testing.T) {
	rec, body := record(t, func(c echo.Context) error {
		return Fail(c, apperr.Internal("query failed", errors.New("password=hunter2")))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
	assert.NotContains(t, rec.Body.String(), "hunter2")
}
