package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"600111222", "+48600111222", false},
		{"48600111222", "+48600111222", false},
		{"+48600111222", "+48600111222", false},
		{"+1 202-555-0100", "+12025550100", false},
		{"600 111 222", "+48600111222", false},
		{"(48) 600-111-222", "+48600111222", false},
		{"12025550100", "+12025550100", false},
		{"123", "", true},
		{"", "", true},
		{"abc", "", true},
		{"+123", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func newTestSender(t *testing.T, baseURL string, testMode bool) *Sender {
	t.Helper()
	s, err := New(Config{
		Token:       "token-1",
		SenderName:  "SHOP",
		BaseURL:     baseURL,
		TestMode:    testMode,
		MaxAttempts: 3,
		BackoffBase: time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func TestNewRequiresTokenAndSender(t *testing.T) {
	if _, err := New(Config{SenderName: "SHOP"}, zap.NewNop()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing token: got %v", err)
	}
	if _, err := New(Config{Token: "t"}, zap.NewNop()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing sender name: got %v", err)
	}
}

func TestNewConfiguresDialTimeout(t *testing.T) {
	s, err := New(Config{Token: "t", SenderName: "SHOP", ConnectTimeout: 3 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tr, ok := s.http.Transport.(*http.Transport)
	if !ok {
		t.Fatal("expected a dedicated transport with a dial timeout")
	}
	if tr.DialContext == nil {
		t.Fatal("dial timeout not wired")
	}
	if tr.TLSHandshakeTimeout != 3*time.Second {
		t.Fatalf("unexpected handshake timeout %v", tr.TLSHandshakeTimeout)
	}
	if s.cfg.Timeout != 20*time.Second {
		t.Fatalf("overall timeout default lost: %v", s.cfg.Timeout)
	}
}

func TestSendSMSSuccess(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = map[string]string{
			"from": r.PostForm.Get("from"),
			"to":   r.PostForm.Get("to"),
			"msg":  r.PostForm.Get("msg"),
			"test": r.PostForm.Get("test"),
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("missing bearer auth")
		}
		w.Write([]byte(`{"messageId": 12345}`))
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL, false)

	id, err := s.SendSMS(context.Background(), "600111222", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "12345" {
		t.Fatalf("unexpected message id %q", id)
	}
	if gotForm["to"] != "+48600111222" || gotForm["from"] != "SHOP" || gotForm["msg"] != "hello" {
		t.Fatalf("unexpected form: %v", gotForm)
	}
	if gotForm["test"] != "" {
		t.Fatal("test flag set outside test mode")
	}
}

func TestSendSMSTestModeFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("test") != "1" {
			t.Errorf("expected test=1 in test mode")
		}
		w.Write([]byte(`{"messageId":"m-1"}`))
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL, true)
	if _, err := s.SendSMS(context.Background(), "600111222", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendSMSInvalidPhoneSkipsNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL, false)

	_, err := s.SendSMS(context.Background(), "123", "hi")
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no gateway calls, got %d", calls)
	}
}

func TestSendSMSRetriesTransient(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"messageId":"m-9"}`))
	}))
	defer srv.Close()

	var delays []time.Duration
	s := newTestSender(t, srv.URL, false)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	id, err := s.SendSMS(context.Background(), "600111222", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "m-9" {
		t.Fatalf("unexpected id %q", id)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	// base × 2^(attempt-1)
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected backoff delays %v", delays)
	}
}

func TestSendSMSExhaustsAttempts(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL, false)

	_, err := s.SendSMS(context.Background(), "600111222", "hi")
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("error should wrap the attempt count: %v", err)
	}
}

func TestSendSMSErrorBodyOn200(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`{"errorCode": 103, "errorMsg": "invalid sender"}`))
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL, false)

	_, err := s.SendSMS(context.Background(), "600111222", "hi")
	if err == nil || !strings.Contains(err.Error(), "invalid sender") {
		t.Fatalf("expected in-band gateway error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("in-band errors must not be retried, got %d attempts", attempts)
	}
}

func TestSendSMSUnknownResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something":"else"}`))
	}))
	defer srv.Close()

	s := newTestSender(t, srv.URL, false)

	_, err := s.SendSMS(context.Background(), "600111222", "hi")
	if err == nil || !strings.Contains(err.Error(), "unknown response") {
		t.Fatalf("expected unknown-response failure, got %v", err)
	}
}
