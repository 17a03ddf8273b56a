package httpapi

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/vinodismyname/parkstats/internal/registry"
	"github.com/vinodismyname/parkstats/pkg/mcperr"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	StatusCode int      `json:"-"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Retryable  bool     `json:"retryable"`
	NextSteps  []string `json:"next_steps,omitempty"`
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// newAPIError builds an error body with catalog guidance for code.
func newAPIError(status int, code mcperr.Code, msg string) *APIError {
	e := &APIError{StatusCode: status, Code: string(code), Message: msg}
	if entry, ok := mcperr.Lookup(code); ok {
		e.Retryable = entry.Retryable
		e.NextSteps = entry.NextSteps
		if e.Message == "" {
			e.Message = entry.Message
		}
	}
	return e
}

// errorFor maps a service error onto a status and catalog code.
func errorFor(err error) *APIError {
	code := registry.ErrorCode(err)
	return newAPIError(statusFor(code), code, err.Error())
}

func statusFor(code mcperr.Code) int {
	switch code {
	case mcperr.Validation, mcperr.UnknownPeriod, mcperr.UnknownSource, mcperr.CursorInvalid:
		return http.StatusBadRequest
	case mcperr.MissingColumn, mcperr.CorruptWorkbook:
		return http.StatusUnprocessableEntity
	case mcperr.UnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case mcperr.PayloadTooLarge, mcperr.LimitExceeded:
		return http.StatusRequestEntityTooLarge
	case mcperr.PermissionDenied:
		return http.StatusForbidden
	case mcperr.NotFound:
		return http.StatusNotFound
	case mcperr.PDFUnavailable, mcperr.BusyResource:
		return http.StatusServiceUnavailable
	case mcperr.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
