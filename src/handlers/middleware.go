// backend/src/handlers/middleware.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/utils"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// ContextualLoggerMiddleware attaches a request-scoped logger with a request
// ID to the context.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// businessIDFromRequest resolves the acting business from the X-Business-ID
// header. Authentication is handled upstream of this service; every handler
// still scopes all reads and writes by this id.
func businessIDFromRequest(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-Business-ID")
	if raw == "" {
		return 0, errors.New("X-Business-ID header required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("X-Business-ID must be a positive integer")
	}
	return id, nil
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Internal
// error text never reaches the client for upstream failures; they get the
// stable reason code only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	reason := apperrors.ReasonOf(err)
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		utils.SendJSONErrorWithCode(w, "invalid input", reason, http.StatusBadRequest)
	case apperrors.KindConflict:
		utils.SendJSONErrorWithCode(w, "conflicting state", reason, http.StatusConflict)
	case apperrors.KindNotFound:
		utils.SendJSONErrorWithCode(w, "not found", reason, http.StatusNotFound)
	case apperrors.KindIntegrity:
		// Cross-business access is a security fault: log loudly, reply blandly.
		logger.FromContext(r.Context()).Error("Integrity violation", "path", r.URL.Path, "error", err)
		utils.SendJSONErrorWithCode(w, "forbidden", reason, http.StatusForbidden)
	case apperrors.KindUpstream:
		logger.FromContext(r.Context()).Error("Upstream failure", "path", r.URL.Path, "error", err)
		utils.SendJSONErrorWithCode(w, "processing failed", reason, http.StatusBadGateway)
	default:
		logger.FromContext(r.Context()).Error("Unhandled error", "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
