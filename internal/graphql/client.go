package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gql "github.com/hasura/go-graphql-client"
)

// TokenSource yields the bearer token attached to every request. auth.Session
// implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ErrorEntry is one element of a GraphQL errors array.
type ErrorEntry struct {
	Message    string
	Extensions struct {
		Code string
		Path string
	}
}

// Error is returned when a response carries GraphQL errors or the request
// never produced a GraphQL answer (extension code "request_error").
type Error struct {
	Errors []ErrorEntry
	cause  error
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, entry := range e.Errors {
		if entry.Extensions.Code != "" {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", entry.Message, entry.Extensions.Code))
			continue
		}
		msgs = append(msgs, entry.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the extension code of the first error.
func (e *Error) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Extensions.Code
}

// translateError turns the library's error list into *Error; any other error
// is wrapped unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var errs gql.Errors
	if !errors.As(err, &errs) {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	out := &Error{Errors: make([]ErrorEntry, 0, len(errs)), cause: err}
	for _, e := range errs {
		entry := ErrorEntry{Message: e.Message}
		if code, ok := e.Extensions["code"].(string); ok {
			entry.Extensions.Code = code
		}
		if path, ok := e.Extensions["path"].(string); ok {
			entry.Extensions.Path = path
		}
		out.Errors = append(out.Errors, entry)
	}
	return out
}

// Client runs queries and mutations over HTTP.
type Client struct {
	gql    *gql.Client
	tokens TokenSource
}

func NewClient(url string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{gql: gql.NewClient(url, httpClient), tokens: tokens}
}

// Do executes a query and decodes its data into out, which may be nil.
func (c *Client) Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	token, err := accessToken(ctx, c.tokens)
	if err != nil {
		return err
	}
	client := c.gql
	if token != "" {
		client = c.gql.WithRequestModifier(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
	}

	data, err := client.ExecRaw(ctx, query, variables)
	if err != nil {
		return translateError(err)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

func accessToken(ctx context.Context, tokens TokenSource) (string, error) {
	if tokens == nil {
		return "", nil
	}
	token, err := tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return token, nil
}
