// Package api is the client for the association's JSON backend. All calls
// carry a bearer token; a 401 triggers exactly one silent refresh-token
// exchange and retry before the error is surfaced.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"memberhub/internal/status"
)

// TokenStore persists the refresh token between sessions.
type TokenStore interface {
	RefreshToken() (string, error)
	SaveRefreshToken(token string) error
}

type Client struct {
	// baseURL is the base url of the association backend.
	baseURL string

	// mu guards the in-memory access token.
	mu          sync.Mutex
	accessToken string

	tokens TokenStore

	// hc is the http client.
	hc *http.Client
}

func NewClient(baseURL string, tokens TokenStore) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// refresh exchanges the stored refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	refreshToken, err := c.tokens.RefreshToken()
	if err != nil {
		return fmt.Errorf("refresh: load token: %w", err)
	}

	body, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("refresh: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("refresh: http.Do: %w: %w", status.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh: status %d: %w", resp.StatusCode, status.ErrUnauthorized)
	}

	var reply struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("refresh: json.Decode: %w", status.ErrDecode)
	}

	c.setAccessToken(reply.AccessToken)
	if reply.RefreshToken != "" {
		if err := c.tokens.SaveRefreshToken(reply.RefreshToken); err != nil {
			slog.Warn("api: could not persist rotated refresh token", "error", err)
		}
	}
	return nil
}

// do performs one API call and decodes the JSON reply into out. A 401 is
// retried once after a refresh-token exchange; there is no other automatic
// retry.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.refresh(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		resp, err = c.send(ctx, method, path, query, body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return fmt.Errorf("%s: still unauthorized after refresh: %w", op, status.ErrUnauthorized)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(resp.Body)
		return status.ServerError(op, resp.StatusCode, rbody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: json.Decode: %w: %w", op, status.ErrDecode, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.getAccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w: %w", status.ErrTransport, err)
	}
	return resp, nil
}
