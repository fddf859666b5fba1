package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

func TestWriteJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]int{"count": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"count":3}}`, rec.Body.String())
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "page must be positive")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"page must be positive"}`, rec.Body.String())
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{outcome.NotFound("post 9 not found"), http.StatusNotFound},
		{outcome.InvalidInput("bad mode"), http.StatusBadRequest},
		{outcome.Conflict("already running"), http.StatusConflict},
		{outcome.Transient("db busy"), http.StatusInternalServerError},
		{outcome.MediaUnreadable("corrupt header"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", outcome.NotFound("gone")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusForError(tc.err), "error %v", tc.err)
	}
}

func TestWriteOutcomeUsesKindStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOutcome(rec, outcome.Conflict("job %q is already running", "find-duplicates"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"job \"find-duplicates\" is already running"}`, rec.Body.String())
}

func TestReadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"walls"}`))
	var dst struct {
		Name string `json:"name"`
	}
	require.NoError(t, ReadJSON(req, &dst))
	assert.Equal(t, "walls", dst.Name)

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.Error(t, ReadJSON(empty, &dst))
}
