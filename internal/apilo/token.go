package apilo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MarcineQ18/apilo-notifier1/internal/metrics"
)

// ErrNoRefreshCredentials is returned when a 401 arrives but the client has
// no refresh token or client credentials to recover with.
var ErrNoRefreshCredentials = errors.New("apilo: missing refresh token or client credentials")

type tokenResponse struct {
	AccessToken          string `json:"accessToken"`
	RefreshToken         string `json:"refreshToken"`
	AccessTokenExpireAt  string `json:"accessTokenExpireAt"`
	RefreshTokenExpireAt string `json:"refreshTokenExpireAt"`
}

// refreshAccessToken exchanges the refresh token for a new token pair.
// The mutex serializes refreshes; a caller that blocked behind another
// refresh finds a changed access token and returns without refreshing again.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	staleToken := c.bearer()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != staleToken {
		// Another caller already refreshed while we waited.
		return nil
	}

	if c.refreshToken == "" || c.clientID == "" || c.clientSecret == "" {
		metrics.RecordTokenRefresh("failure")
		return ErrNoRefreshCredentials
	}

	payload, err := json.Marshal(map[string]string{
		"grantType": "refresh_token",
		"token":     c.refreshToken,
	})
	if err != nil {
		return fmt.Errorf("encode refresh payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/auth/token/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordTokenRefresh("failure")
		return fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordTokenRefresh("failure")
		return fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordTokenRefresh("failure")
		return &RequestError{Status: resp.StatusCode, Body: string(body)}
	}

	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		metrics.RecordTokenRefresh("failure")
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		metrics.RecordTokenRefresh("failure")
		return fmt.Errorf("token refresh response missing tokens")
	}

	c.accessToken = tokens.AccessToken
	c.refreshToken = tokens.RefreshToken
	metrics.RecordTokenRefresh("success")

	c.logger.Info("apilo tokens refreshed")

	if c.onTokens != nil {
		c.onTokens(tokens.AccessToken, tokens.RefreshToken, tokens.AccessTokenExpireAt, tokens.RefreshTokenExpireAt)
	}

	return nil
}

// Tokens returns the current token pair.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}
