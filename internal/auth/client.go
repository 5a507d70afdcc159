package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gwi.com/chatsync/internal/model"
)

// Tokens is a signed-in session as returned by the auth service.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         model.User
}

// Client talks to a hosted email/password auth service (Nhost-compatible).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// APIError is a non-2xx answer from the auth service.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth service: %s (%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("auth service returned status %d", e.Status)
}

type sessionPayload struct {
	AccessToken          string `json:"accessToken"`
	AccessTokenExpiresIn int64  `json:"accessTokenExpiresIn"`
	RefreshToken         string `json:"refreshToken"`
	User                 *struct {
		ID          string    `json:"id"`
		Email       string    `json:"email"`
		DisplayName string    `json:"displayName"`
		CreatedAt   time.Time `json:"createdAt"`
	} `json:"user"`
}

type sessionEnvelope struct {
	Session *sessionPayload `json:"session"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	var env sessionEnvelope
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/signin/email-password", body, &env); err != nil {
		return nil, err
	}
	return env.tokens()
}

// SignUp registers a user. Services that require email verification return
// no session; the caller then has to sign in after verifying.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*Tokens, error) {
	var env sessionEnvelope
	body := map[string]interface{}{"email": email, "password": password}
	if displayName != "" {
		body["options"] = map[string]string{"displayName": displayName}
	}
	if err := c.post(ctx, "/signup/email-password", body, &env); err != nil {
		return nil, err
	}
	if env.Session == nil {
		return nil, nil
	}
	return env.tokens()
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var payload sessionPayload
	if err := c.post(ctx, "/token", map[string]string{"refreshToken": refreshToken}, &payload); err != nil {
		return nil, err
	}
	return payload.tokens()
}

func (e sessionEnvelope) tokens() (*Tokens, error) {
	if e.Session == nil {
		return nil, fmt.Errorf("auth service returned no session")
	}
	return e.Session.tokens()
}

func (p sessionPayload) tokens() (*Tokens, error) {
	if p.AccessToken == "" {
		return nil, fmt.Errorf("auth service returned no access token")
	}
	t := &Tokens{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if p.AccessTokenExpiresIn > 0 {
		t.ExpiresAt = time.Now().Add(time.Duration(p.AccessTokenExpiresIn) * time.Second)
	}
	if p.User != nil {
		t.User = model.User{ID: p.User.ID, Email: p.User.Email, DisplayName: p.User.DisplayName, CreatedAt: p.User.CreatedAt}
	}
	if t.User.ID == "" || t.ExpiresAt.IsZero() {
		userID, exp, err := ParseClaims(p.AccessToken)
		if err != nil {
			return nil, err
		}
		if t.User.ID == "" {
			t.User.ID = userID
		}
		if t.ExpiresAt.IsZero() {
			t.ExpiresAt = exp
		}
	}
	return t, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	return nil
}
