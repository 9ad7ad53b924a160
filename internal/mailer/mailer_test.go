package mailer

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestSendFailsFastWhenUnconfigured(t *testing.T) {
	complete := Config{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "noreply@example.com",
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.Host = "" }},
		{"missing port", func(c *Config) { c.Port = 0 }},
		{"missing username", func(c *Config) { c.Username = "" }},
		{"missing password", func(c *Config) { c.Password = "" }},
		{"missing from", func(c *Config) { c.From = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := complete
			tc.mutate(&cfg)
			m := New(cfg, zap.NewNop())

			err := m.Send(context.Background(), "to@example.com", "s", "b", false)
			if !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestSendRejectsInvalidAddresses(t *testing.T) {
	m := New(Config{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "noreply@example.com",
	}, zap.NewNop())

	// Address validation happens before any dial attempt.
	if err := m.Send(context.Background(), "not-an-address", "s", "b", false); err == nil {
		t.Fatal("expected error for malformed recipient")
	}
}
