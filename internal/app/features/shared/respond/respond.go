// Package respond renders JSON responses and maps application errors
// to HTTP statuses at the feature boundary.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"go.uber.org/zap"
)

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error renders err with its mapped status. Internal errors are logged
// with their cause but reported to the client as a generic message.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	message := apperr.MessageOf(err)

	if kind == apperr.KindInternal && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}

	JSON(w, status, errorBody{Error: errorDetail{
		Kind:    string(kind),
		Message: message,
	}})
}
