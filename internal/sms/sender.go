// Package sms sends text messages through the SMSPlanet HTTP gateway.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPhone is returned before any network call when the
	// recipient number cannot be normalized.
	ErrInvalidPhone = errors.New("sms: invalid phone number")

	// ErrNotConfigured is returned when the gateway token or sender name
	// is missing.
	ErrNotConfigured = errors.New("sms: gateway token or sender name not configured")
)

// Polish numbers are the local default; bare 9-digit numbers get +48.
const localCountryPrefix = "+48"

var (
	nonPhoneChars = regexp.MustCompile(`[^\d+]`)
	bareLocal     = regexp.MustCompile(`^\d{9}$`)
	bareIntl      = regexp.MustCompile(`^\d{10,15}$`)
)

// NormalizePhone strips formatting characters and brings the number into
// +<country><subscriber> form. It returns ErrInvalidPhone for anything that
// does not classify.
func NormalizePhone(phone string) (string, error) {
	p := nonPhoneChars.ReplaceAllString(strings.TrimSpace(phone), "")
	if p == "" {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(p, localCountryPrefix) && len(p) == 12:
		return p, nil
	case strings.HasPrefix(p, "48") && len(p) == 11:
		return "+" + p, nil
	case bareLocal.MatchString(p):
		return localCountryPrefix + p, nil
	case strings.HasPrefix(p, "+") && len(p) >= 10:
		return p, nil
	case bareIntl.MatchString(p):
		return "+" + p, nil
	}
	return "", ErrInvalidPhone
}

type Config struct {
	Token       string
	SenderName  string
	BaseURL     string
	TestMode    bool
	MaxAttempts int
	BackoffBase time.Duration
	// Timeout bounds the whole exchange, ConnectTimeout the dial alone.
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

type Sender struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	// replaced in tests to avoid real delays
	sleep func(ctx context.Context, d time.Duration) error
}

// New validates the gateway configuration up front.
func New(cfg Config, logger *zap.Logger) (*Sender, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.SenderName = strings.TrimSpace(cfg.SenderName)
	if cfg.Token == "" || cfg.SenderName == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api2.smsplanet.pl"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	return &Sender{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
			},
		},
		logger: logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}, nil
}

// transientError marks a failure worth another attempt.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// SendSMS posts one message and returns the gateway message id. Transient
// failures (429/5xx or a transport error) are retried with exponential
// backoff after resetting the connection pool; everything else fails
// immediately.
func (s *Sender) SendSMS(ctx context.Context, toPhone, message string) (string, error) {
	toNorm, err := NormalizePhone(toPhone)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, toPhone)
	}

	form := url.Values{}
	form.Set("from", s.cfg.SenderName)
	form.Set("to", toNorm)
	form.Set("msg", message)
	if s.cfg.TestMode {
		form.Set("test", "1")
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		id, err := s.post(ctx, form)
		if err == nil {
			s.logger.Info("sms sent",
				zap.String("to", toNorm),
				zap.String("message_id", id),
				zap.Int("attempt", attempt),
			)
			return id, nil
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			return "", err
		}
		lastErr = err

		if attempt >= s.cfg.MaxAttempts {
			break
		}

		// Stale connections are a common cause of the transient class.
		s.http.CloseIdleConnections()

		delay := s.cfg.BackoffBase * time.Duration(1<<(attempt-1))
		s.logger.Warn("sms send failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("sms send failed after %d attempts: %w", s.cfg.MaxAttempts, lastErr)
}

func (s *Sender) post(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/sms", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", &transientError{fmt.Errorf("sms gateway request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transientError{fmt.Errorf("read sms gateway response: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return "", &transientError{fmt.Errorf("sms gateway transient HTTP %d: %s", resp.StatusCode, body)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms gateway HTTP %d: %s", resp.StatusCode, body)
	}

	// 2xx still needs body inspection: the gateway reports errors in-band.
	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", fmt.Errorf("sms gateway unknown response: %s", body)
		}
	}

	if id, ok := payload["messageId"]; ok {
		switch t := id.(type) {
		case string:
			return t, nil
		case float64:
			return fmt.Sprintf("%.0f", t), nil
		}
	}
	if msg, ok := payload["errorMsg"]; ok {
		return "", fmt.Errorf("sms gateway error %v: %v", payload["errorCode"], msg)
	}

	return "", fmt.Errorf("sms gateway unknown response: %s", body)
}
