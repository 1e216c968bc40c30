package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/healthapp/reviews/pkg/errors"
)

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError turns a non-2xx response into an error. Structured
// error envelopes become *apperrors.AppError values wrapping the matching
// sentinel, so callers can test them with errors.Is. The body is consumed
// and closed.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		return fromStatus(resp.StatusCode, env.Error.Code, env.Error.Message)
	}
	return fromStatus(resp.StatusCode, "", fmt.Sprintf("%s returned status %d", service, resp.StatusCode))
}

// FromTransport classifies errors returned by BreakerClient.Do: server
// errors and open circuits become ErrServiceUnavail.
func FromTransport(err error, service string) error {
	var se *ServerError
	switch {
	case errors.As(err, &se):
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: fmt.Sprintf("%s returned status %d", service, se.Status),
			Status:  http.StatusServiceUnavailable,
			Err:     errors.Join(apperrors.ErrServiceUnavail, err),
		}
	case errors.Is(err, ErrCircuitOpen):
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: service + " is temporarily unavailable",
			Status:  http.StatusServiceUnavailable,
			Err:     errors.Join(apperrors.ErrServiceUnavail, err),
		}
	default:
		return fmt.Errorf("call %s: %w", service, err)
	}
}

func fromStatus(status int, code, message string) error {
	build := func(defaultCode string, sentinel error) *apperrors.AppError {
		if code == "" {
			code = defaultCode
		}
		return &apperrors.AppError{Code: code, Message: message, Status: status, Err: sentinel}
	}

	switch status {
	case http.StatusBadRequest:
		return build("INVALID_INPUT", apperrors.ErrInvalidInput)
	case http.StatusUnauthorized:
		return build("UNAUTHORIZED", apperrors.ErrUnauthorized)
	case http.StatusForbidden:
		return build("FORBIDDEN", apperrors.ErrForbidden)
	case http.StatusNotFound:
		return build("NOT_FOUND", apperrors.ErrNotFound)
	case http.StatusConflict:
		if code == "ALREADY_EXISTS" {
			return build(code, apperrors.ErrAlreadyExists)
		}
		return build("CONFLICT", apperrors.ErrConflict)
	case http.StatusUnprocessableEntity:
		return build("VALIDATION_FAILED", apperrors.ErrValidationFailed)
	case http.StatusTooManyRequests:
		return build("RATE_LIMITED", apperrors.ErrRateLimited)
	case http.StatusServiceUnavailable:
		return build("SERVICE_UNAVAILABLE", apperrors.ErrServiceUnavail)
	}
	if status >= http.StatusInternalServerError {
		return build("INTERNAL_ERROR", apperrors.ErrInternal)
	}
	return build("UNEXPECTED_STATUS", nil)
}
