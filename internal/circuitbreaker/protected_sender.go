package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sender mirrors the dispatch.Sender interface to avoid a circular import.
type Sender interface {
	Send(ctx context.Context, subject, body string, to []string) error
}

// ProtectedSender wraps a mail Sender with a CircuitBreaker. An open circuit
// surfaces as an ordinary send error, which the dispatcher records as a
// failed attempt like any other relay rejection.
type ProtectedSender struct {
	sender  Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts a delivery through the circuit breaker. If the circuit is
// open it fails fast without touching the relay.
func (p *ProtectedSender) Send(ctx context.Context, subject, body string, to []string) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected send",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("state", p.breaker.GetState().String()),
			zap.Int("recipients", len(to)),
		)
		return fmt.Errorf("%w: %s relay unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	if err := p.sender.Send(ctx, subject, body, to); err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
