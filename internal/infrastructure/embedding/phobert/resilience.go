package phobert

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/vietcare/medsearch/internal/infrastructure/resilience"
)

func classifyEmbedError(err error) resilience.Outcome {
	if err == nil {
		return resilience.Outcome{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Outcome{}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Outcome{Retry: true, TripBreaker: true}
		default:
			return resilience.Outcome{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Outcome{Retry: true, TripBreaker: true}
	}

	return resilience.Outcome{TripBreaker: true}
}
