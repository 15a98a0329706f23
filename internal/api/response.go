package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "airline_ops/internal/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err with request context and sends it to the client.
// This is the only place handlers log failures.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	errorType := apperrors.GetType(err)
	status := statusFor(errorType)

	logCtx := logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"error_type", errorType,
		"status_code", status,
	)
	switch errorType {
	case apperrors.ErrorTypeInternal:
		logCtx.Error("Request failed", "error", err)
	case apperrors.ErrorTypeNotFound:
		logCtx.Debug("Resource not found", "error", err)
	default:
		logCtx.Info("Request rejected", "error", err)
	}

	msg := err.Error()
	if errorType == apperrors.ErrorTypeInternal {
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{
		Error:   string(errorType),
		Code:    string(apperrors.GetCode(err)),
		Message: msg,
	})
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(msg string) error {
	return apperrors.New(apperrors.CodeInvalidRequest, msg)
}
