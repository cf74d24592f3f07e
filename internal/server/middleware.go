package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"guild_stats/internal/app"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	callerKey    contextKey = "caller"
)

// statusRecorder captures the response status for the completion log line
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestID tags every request with an id, taken from X-Request-ID when the
// client sent one, and stores a logger carrying it in the request context.
func RequestID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx = reqLogger.WithContext(ctx)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("Request completed")
		})
	}
}

// GetRequestID returns the id assigned by RequestID
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Authenticate attaches the bearer token's identity to the request context.
// Requests without a valid token continue anonymously; RequireAdmin decides
// whether that is acceptable.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := parseCaller(strings.TrimSpace(token), secret)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Ignoring invalid bearer token")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
		})
	}
}

func parseCaller(token string, secret []byte) (app.Caller, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return app.Caller{}, err
	}

	caller := app.Caller{}
	caller.UID, _ = claims["uid"].(string)
	caller.Email, _ = claims["email"].(string)
	caller.Role, _ = claims["role"].(string)
	return caller, nil
}

// CallerFromContext returns the authenticated caller, if any
func CallerFromContext(ctx context.Context) (app.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(app.Caller)
	return caller, ok
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		if !caller.IsAdmin() {
			zerolog.Ctx(r.Context()).Warn().
				Str("uid", caller.UID).
				Str("role", caller.Role).
				Msg("Rejected non-admin mutation")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
