package web

// Every error leaves the API the same way: the technical error is logged with
// the request's ID and organization, and the client gets the catalogued
// message as {error, message, action, code}. statusFor picks the HTTP status
// from the error chain.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/barkbook/internal/core"
	"github.com/JonMunkholm/barkbook/internal/logging"
	"github.com/JonMunkholm/barkbook/internal/payments"
)

var (
	errNoFile      = errors.New("no file provided")
	errInvalidBody = errors.New("invalid json body")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, statusFor(err), "")
}

// writeError logs err and writes the envelope. A non-empty headline replaces
// the error field, keeping message/action/code from the catalogue.
func writeError(w http.ResponseWriter, r *http.Request, err error, status int, headline string) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Info("request rejected")
	}

	if headline == "" {
		headline = msg.Message
	}
	writeJSON(w, status, ErrorResponse{
		Error:   headline,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func statusFor(err error) int {
	var perr *core.ParseError
	switch {
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, payments.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr),
		errors.Is(err, core.ErrNoRows),
		errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrTooManyRows),
		errors.Is(err, core.ErrMissingOrganization),
		errors.Is(err, core.ErrInvalidOrganization),
		errors.Is(err, payments.ErrMissingSignature),
		errors.Is(err, payments.ErrInvalidSignature),
		errors.Is(err, errNoFile),
		errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// bodyError turns http.MaxBytesReader's error into ErrFileTooLarge.
func bodyError(err error, fallback error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return errors.Join(core.ErrFileTooLarge, err)
	}
	return errors.Join(fallback, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

func retryAfter(w http.ResponseWriter, seconds int) {
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}
