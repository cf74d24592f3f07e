package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"guild_stats/internal/processing"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error string `json:"error"`
	// RequestID lets a caller quote a server failure that is only in the logs
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps processing errors to HTTP status codes
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, processing.ErrValidation),
		errors.Is(err, processing.ErrUnsupportedFormat),
		errors.Is(err, processing.ErrFileDecode),
		errors.Is(err, processing.ErrNoRecords):
		return http.StatusBadRequest
	case errors.Is(err, processing.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		// storage details stay in the log
		resp.Error = "internal error"
		resp.RequestID = GetRequestID(r.Context())
	} else {
		logger.Info().Err(err).Int("status", status).Msg("Request rejected")
	}

	writeJSON(w, status, resp)
}
