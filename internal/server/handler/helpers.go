package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// roundParams reads the {id} and {round} path parameters. ok is false, and a
// 400 has been written, when either is missing or the round is not a positive
// integer.
func roundParams(w http.ResponseWriter, r *http.Request) (marketID string, roundNumber int64, ok bool) {
	marketID = pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return "", 0, false
	}
	roundNumber, err := strconv.ParseInt(pathParam(r, "round"), 10, 64)
	if err != nil || roundNumber < 1 {
		writeError(w, http.StatusBadRequest, "round must be a positive integer")
		return "", 0, false
	}
	return marketID, roundNumber, true
}

// statusFor maps domain errors onto HTTP status codes. ok is false for
// errors that should be logged and reported as 500.
func statusFor(err error) (status int, msg string, ok bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found", true
	case errors.Is(err, domain.ErrInvalidStake):
		return http.StatusBadRequest, "invalid stake amount", true
	case errors.Is(err, domain.ErrBettingClosed):
		return http.StatusConflict, "betting closed", true
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited", true
	}
	return http.StatusInternalServerError, "", false
}

// respondErr writes the mapped status for known domain errors and logs
// anything else as a 500.
func respondErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if status, msg, ok := statusFor(err); ok {
		writeError(w, status, msg)
		return
	}
	logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}
