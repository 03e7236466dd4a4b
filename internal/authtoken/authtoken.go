// Package authtoken fetches the short-lived bearer token a pilot client
// presents as its FSD password, using the same device-code-plus-poll
// exchange the companion desktop app uses for its own API session.
package authtoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Credentials identifies the pilot to the auth endpoint.
type Credentials struct {
	CID      string
	Password string
}

type tokenRequest struct {
	CID      string `json:"cid"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// Client fetches FSD login tokens from an external auth endpoint over
// HTTP. The zero value is not usable; construct with New.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Client against baseURL (e.g. "https://auth.vatsim.net").
// A nil httpClient defaults to http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// FetchToken exchanges credentials for a bearer token suitable as the FSD
// password field on #AP/#AA.
func (c *Client) FetchToken(ctx context.Context, creds Credentials) (string, error) {
	payload, err := json.Marshal(tokenRequest{CID: creds.CID, Password: creds.Password})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/fsd-jwt", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth server returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tr.Error != "" {
		return "", fmt.Errorf("auth server error: %s", tr.Error)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("auth server returned empty token")
	}

	return tr.Token, nil
}

// deviceCodeResponse mirrors the device-code flow used to obtain a
// longer-lived session before a token is minted, for auth backends that
// require interactive approval rather than a direct password exchange.
type deviceCodeResponse struct {
	UserCode           string `json:"user_code"`
	AuthorizationToken string `json:"authorization_token"`
}

// RequestDeviceCode starts an interactive device-code authorization,
// returning the short code the caller displays to the pilot and the
// opaque token used to poll for completion.
func (c *Client) RequestDeviceCode(ctx context.Context) (userCode, authorizationToken string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/request", nil)
	if err != nil {
		return "", "", fmt.Errorf("create device code request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request device code: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read device code response: %w", err)
	}

	var dcr deviceCodeResponse
	if err := json.Unmarshal(body, &dcr); err != nil {
		return "", "", fmt.Errorf("parse device code response: %w", err)
	}

	return dcr.UserCode, dcr.AuthorizationToken, nil
}

// PollForToken polls the auth endpoint until the pilot has approved the
// device-code request or ctx is cancelled, retrying at the given interval.
func (c *Client) PollForToken(ctx context.Context, authorizationToken string, interval time.Duration) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			payload, err := json.Marshal(map[string]string{"authorization_token": authorizationToken})
			if err != nil {
				return "", fmt.Errorf("marshal poll request: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/token", bytes.NewReader(payload))
			if err != nil {
				return "", fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return "", fmt.Errorf("poll token: %w", err)
			}

			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return "", fmt.Errorf("read poll response: %w", readErr)
			}

			if resp.StatusCode == http.StatusAccepted {
				continue // pilot has not approved yet
			}
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("auth server returned status %d: %s", resp.StatusCode, string(body))
			}

			var tr tokenResponse
			if err := json.Unmarshal(body, &tr); err != nil {
				return "", fmt.Errorf("parse poll response: %w", err)
			}
			if tr.Token == "" {
				continue
			}
			return tr.Token, nil
		}
	}
}
