// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Pricing failures. Callers match them with errors.Is; producers wrap them with
// extra context using fmt.Errorf("%w: ...").
var (
	ErrTokenNotInPool      = errors.New("token not in pool")
	ErrSwapLimitExceeded   = errors.New("swap limit exceeded")
	ErrInvalidPath         = errors.New("invalid path")
	ErrInvalidSwap         = errors.New("invalid swap")
	ErrMixedEndpointTokens = errors.New("paths have mixed endpoint tokens")
	ErrNoCandidatePaths    = errors.New("no candidate paths")
	ErrDivisionByZero      = errors.New("division by zero")

	ErrPriceImpactUnavailable = errors.New("price impact unavailable")
)

// HttpError represents an HTTP error with status code and message
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorUnprocessable(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "UNPROCESSABLE_QUOTE",
		Message:    messageOrDefault(msg, "Quote could not be computed"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

// HTTPErrorFromPricing maps a pricing failure onto the response the quote API
// returns for it.
func HTTPErrorFromPricing(err error) *HttpError {
	switch {
	case errors.Is(err, ErrMixedEndpointTokens), errors.Is(err, ErrInvalidPath):
		return HTTPErrorBadRequest(err.Error())
	case errors.Is(err, ErrTokenNotInPool),
		errors.Is(err, ErrSwapLimitExceeded),
		errors.Is(err, ErrInvalidSwap),
		errors.Is(err, ErrDivisionByZero):
		return HTTPErrorUnprocessable(err.Error())
	default:
		return HTTPErrorInternalError(err.Error())
	}
}
