package retry

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCTransient classifies gRPC errors the way the Qdrant client does:
// unavailability, timeouts, aborts, and resource exhaustion are retried;
// anything else (bad input, not found, auth) is permanent.
func GRPCTransient(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return NetworkTransient(err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// NetworkTransient classifies errors for retry: a net.Error is retryable
// only when it is a timeout (so a refused connection is permanent), any
// other error is retryable, and context cancellation is always permanent.
func NetworkTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}
