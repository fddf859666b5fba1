// Package httputil renders the JSON envelope shared by every API
// response and maps outcome kinds to HTTP status codes.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

// Response is the envelope for every API payload.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// WriteOutcome renders an operation error: NotFound 404, InvalidInput
// 400, Conflict 409, everything else 500.
func WriteOutcome(w http.ResponseWriter, err error) {
	WriteError(w, StatusForError(err), err.Error())
}

// StatusForError maps an error's outcome kind to its HTTP status.
func StatusForError(err error) int {
	switch outcome.KindOf(err) {
	case outcome.KindNotFound:
		return http.StatusNotFound
	case outcome.KindInvalidInput:
		return http.StatusBadRequest
	case outcome.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ReadJSON decodes a request body.
func ReadJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
