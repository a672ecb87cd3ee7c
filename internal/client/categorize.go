package client

import (
	"context"
	"errors"
	"net"

	"github.com/kjstillabower/attire-decider/internal/circuitbreaker"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryRateLimited ErrorCategory = "rate_limited"
	ErrorCategoryUpstream    ErrorCategory = "upstream_http"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"
	ErrorCategoryCanceled    ErrorCategory = "canceled"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps an upstream error to an ErrorCategory. nil maps to "".
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrMalformedResponse):
		return ErrorCategoryParsing
	case errors.Is(err, context.Canceled):
		return ErrorCategoryCanceled
	case isTimeout(err):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream
	}
	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) {
		return ErrorCategoryNetwork
	}
	return ErrorCategoryUnknown
}
