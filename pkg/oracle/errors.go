package oracle

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrUnavailable indicates the oracle could not be reached or refused
	// service. Transient; eligible for one bounded retry.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrTimeout indicates the oracle did not answer in time. Transient;
	// eligible for one bounded retry.
	ErrTimeout = errors.New("oracle timeout")
)

// IsTransient reports whether the error is a retryable upstream failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// ClassifyTransportError maps SDK and network failures onto the oracle
// error taxonomy so retry and breaker wrappers can tell transient faults
// from permanent ones. Non-transient errors pass through unchanged.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"service unavailable",
		"bad gateway",
		"too many requests",
		"rate limit",
		"429",
		"500",
		"502",
		"503",
	} {
		if strings.Contains(msg, pattern) {
			return errors.Join(ErrUnavailable, err)
		}
	}
	return err
}
