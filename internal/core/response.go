// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Response struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{
		StatusCode: status,
		Success:    status < http.StatusBadRequest,
		Message:    message,
		Data:       data,
	})
}

func OK(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusOK, data, message)
}

func Created(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusCreated, data, message)
}

// JSONError writes err as the error envelope. Errors outside the taxonomy are
// logged and reported as 500.
func JSONError(w http.ResponseWriter, err error) {
	appErr := ToAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		LogError(slog.Default(), "request failed", err)
	}

	writeJSON(w, appErr.StatusCode, ErrorResponse{
		StatusCode: appErr.StatusCode,
		Success:    false,
		Message:    appErr.Message,
		Code:       appErr.Code,
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, ValidationError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

func InternalServerError(w http.ResponseWriter, err error) {
	LogError(slog.Default(), "internal server error", err)
	JSONError(w, InternalError())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}
