package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EmailSender mirrors the dispatch loop's email interface to avoid a
// circular import.
type EmailSender interface {
	Send(ctx context.Context, toAddr, subject, body string, isHTML bool) error
}

// SMSSender mirrors the dispatch loop's SMS interface.
type SMSSender interface {
	SendSMS(ctx context.Context, toPhone, message string) (string, error)
}

// ProtectedEmailSender decorates an EmailSender with a circuit breaker.
// While the relay is failing, Send returns ErrCircuitOpen immediately
// instead of waiting out a dial timeout for every matched template.
type ProtectedEmailSender struct {
	sender  EmailSender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedEmailSender wraps an email sender with breaker protection.
func NewProtectedEmailSender(sender EmailSender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedEmailSender {
	return &ProtectedEmailSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedEmailSender) Send(ctx context.Context, toAddr, subject, body string, isHTML bool) error {
	if !p.breaker.Allow() {
		p.logger.Warn("email send rejected, circuit open",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s gateway unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	if err := p.sender.Send(ctx, toAddr, subject, body, isHTML); err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for the admin API.
func (p *ProtectedEmailSender) Breaker() *CircuitBreaker {
	return p.breaker
}

// ProtectedSMSSender decorates an SMSSender with a circuit breaker. The
// sender's own transient retry still runs inside a single Allow window, so
// one delivery counts as one breaker event regardless of attempts.
type ProtectedSMSSender struct {
	sender  SMSSender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSMSSender wraps an SMS sender with breaker protection.
func NewProtectedSMSSender(sender SMSSender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSMSSender {
	return &ProtectedSMSSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedSMSSender) SendSMS(ctx context.Context, toPhone, message string) (string, error) {
	if !p.breaker.Allow() {
		p.logger.Warn("sms send rejected, circuit open",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("state", p.breaker.GetState().String()),
		)
		return "", fmt.Errorf("%w: %s gateway unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	msgID, err := p.sender.SendSMS(ctx, toPhone, message)
	if err != nil {
		p.breaker.RecordFailure()
		return "", err
	}

	p.breaker.RecordSuccess()
	return msgID, nil
}

// Breaker returns the underlying circuit breaker for the admin API.
func (p *ProtectedSMSSender) Breaker() *CircuitBreaker {
	return p.breaker
}
