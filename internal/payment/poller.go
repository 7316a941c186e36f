// ABOUTME: Polls the payment gateway until an order code reaches a final state
// ABOUTME: PAID ends the watch successfully, CANCELLED and timeouts end it with an error

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/gateway"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Minute
)

var (
	// ErrPaymentCancelled is returned when the gateway reports CANCELLED.
	ErrPaymentCancelled = errors.New("payment was cancelled")
	// ErrTimeout is returned when no final status arrived within the poll timeout.
	ErrTimeout = errors.New("timed out waiting for payment")
)

// Checker looks up the status of an order code. *client.Client satisfies it.
type Checker interface {
	CheckPaymentStatus(ctx context.Context, orderCode string) (*client.PaymentStatus, error)
}

// Update is reported after every check. Exactly one of Status and Err is set.
type Update struct {
	Attempt int
	Status  *client.PaymentStatus
	Err     error
}

// Poller watches payments.
type Poller struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration
}

// NewPoller creates a poller. Zero durations fall back to the defaults.
func NewPoller(checker Checker, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{checker: checker, interval: interval, timeout: timeout}
}

// Watch checks orderCode immediately and then once per interval until the
// payment is PAID or CANCELLED, ctx is done, or the timeout elapses. onUpdate
// may be nil.
//
// A failed check is reported and polling continues, unless the session has
// expired or the server refuses the credentials, which ends the watch.
func (p *Poller) Watch(ctx context.Context, orderCode string, onUpdate func(Update)) (*client.PaymentStatus, error) {
	if orderCode == "" {
		return nil, fmt.Errorf("order code is required")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *client.PaymentStatus
	for attempt := 1; ; attempt++ {
		status, err := p.checker.CheckPaymentStatus(ctx, orderCode)
		if ctx.Err() != nil {
			return last, p.stopReason(ctx, orderCode)
		}

		if onUpdate != nil {
			onUpdate(Update{Attempt: attempt, Status: status, Err: err})
		}

		if err != nil {
			if errors.Is(err, gateway.ErrSessionExpired) || gateway.IsUnauthorized(err) {
				return last, err
			}
			slog.Warn("Payment status check failed", "order_code", orderCode, "attempt", attempt, "error", err)
		} else {
			last = status
			slog.Debug("Payment status", "order_code", orderCode, "status", status.Status, "attempt", attempt)
			switch status.Status {
			case client.PaymentPaid:
				return status, nil
			case client.PaymentCancelled:
				return status, ErrPaymentCancelled
			}
		}

		select {
		case <-ctx.Done():
			return last, p.stopReason(ctx, orderCode)
		case <-ticker.C:
		}
	}
}

func (p *Poller) stopReason(ctx context.Context, orderCode string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		slog.Warn("Gave up waiting for payment", "order_code", orderCode, "timeout", p.timeout)
		return fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
	}
	return ctx.Err()
}
