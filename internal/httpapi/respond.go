package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sim-daas/Midnight-Blues/internal/service/serverrors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, serverrors.ErrValidation), errors.Is(err, serverrors.ErrBusinessRule):
		return http.StatusBadRequest
	case errors.Is(err, serverrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, serverrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, serverrors.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {success, error, code, ...details}. Errors
// without a classification are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := statusFor(err)
	body := map[string]any{"success": false}

	se, ok := serverrors.As(err)
	if !ok {
		log.Error("unhandled error",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		body["error"] = "Internal server error"
		writeJSON(w, status, body)
		return
	}

	for k, v := range se.Details {
		body[k] = v
	}
	body["error"] = se.Message
	body["code"] = se.Code

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("code", se.Code),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON body into dst. Malformed input is a validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return serverrors.New(serverrors.ErrValidation, serverrors.CodeInvalidRequest, "Invalid JSON body").Wrap(err)
	}
	return nil
}
