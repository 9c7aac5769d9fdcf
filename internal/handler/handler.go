package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"ryxel/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone; nothing useful left to do for the client.
		return
	}
}

// statusForCode maps domain error codes onto HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeValidation,
		model.ErrCodeInvalidJSON,
		model.ErrCodeInvalidDiscount,
		model.ErrCodeInsufficientStock,
		model.ErrCodeInvalidSignature:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeOrderNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTransition,
		model.ErrCodeDuplicatePayment,
		model.ErrCodeUnpaidOrderExists:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeExternalService:
		return http.StatusBadGateway
	case model.ErrCodeTransactionConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a service error as a JSON error response. Domain
// errors carry their own code and message; anything else becomes an
// opaque internal error.
func writeError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var de *model.DomainError
	if errors.As(err, &de) {
		status := statusForCode(de.Code)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("code", de.Code).Msg("handler error")
		} else {
			logger.Debug().Str("code", de.Code).Str("message", de.Message).Msg("request rejected")
		}
		writeJSON(w, status, model.ErrorResponse{Error: de.Code, Message: de.Message})
		return
	}

	logger.Error().Err(err).Msg("handler error")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:   model.ErrCodeInternalError,
		Message: "internal server error",
	})
}

// writeBadRequest rejects malformed input before it reaches a service.
func writeBadRequest(w http.ResponseWriter, code, message string, logger zerolog.Logger) {
	writeError(w, model.NewDomainError(code, message), logger)
}
