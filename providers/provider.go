package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrSignature       = errors.New("webhook signature verification failed")
	ErrProvider        = errors.New("payment provider error")
	ErrProviderTimeout = errors.New("payment provider timed out")
	ErrNoPayerEmail    = errors.New("provider reported no payer email")
)

// classify maps transport failures onto the provider error taxonomy. Timeouts are kept
// distinct so callers can tell the client to retry.
func classify(ctx context.Context, op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s: %w", ErrProviderTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}
