package handler

import (
	"amortization-engine/internal/api/handler/dto"
	"amortization-engine/internal/pkg/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const maxRequestBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	var validationErrors apperrors.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondJSON(w, http.StatusBadRequest, dto.ValidationErrorsResponse{Errors: validationErrors})
		return
	}

	status, code, message, field := http.StatusInternalServerError, "", "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError

	switch {
	case errors.Is(err, apperrors.ErrRateUnavailable):
		status, code, message = http.StatusServiceUnavailable, "RATE_UNAVAILABLE", "Benchmark rate is currently unavailable."
		slog.Default().Error("Benchmark rate unavailable", "error", err)
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}
