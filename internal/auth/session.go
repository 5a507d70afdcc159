package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// refreshMargin is how long before expiry an access token is renewed.
const refreshMargin = time.Minute

var ErrSignedOut = errors.New("signed out")

// Refresher exchanges a refresh token for a new session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

// Session holds the signed-in user's tokens. It is the auth collaborator of
// core.Session and the token source of the GraphQL transport.
type Session struct {
	mu        sync.Mutex
	tokens    *Tokens
	refresher Refresher
	log       *zap.Logger
	now       func() time.Time
}

// NewSession wraps tokens obtained from SignIn or SignUp. refresher may be nil
// for tokens that cannot be renewed.
func NewSession(tokens *Tokens, refresher Refresher, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{tokens: tokens, refresher: refresher, log: log, now: time.Now}
}

// NewStaticSession builds a session from a pre-issued access token, reading
// the user id from its claims.
func NewStaticSession(accessToken string) (*Session, error) {
	userID, exp, err := ParseClaims(accessToken)
	if err != nil {
		return nil, err
	}
	tokens := &Tokens{AccessToken: accessToken, ExpiresAt: exp}
	tokens.User.ID = userID
	return NewSession(tokens, nil, nil), nil
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens != nil && s.tokens.AccessToken != ""
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.User.ID
}

// AccessToken returns a token valid for at least refreshMargin, refreshing it
// first when possible.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil || s.tokens.AccessToken == "" {
		return "", ErrSignedOut
	}
	exp := s.tokens.ExpiresAt
	if exp.IsZero() || s.now().Add(refreshMargin).Before(exp) {
		return s.tokens.AccessToken, nil
	}
	if s.refresher == nil || s.tokens.RefreshToken == "" {
		// Let the server decide; it reports expiry as an auth error.
		return s.tokens.AccessToken, nil
	}

	fresh, err := s.refresher.Refresh(ctx, s.tokens.RefreshToken)
	if err != nil {
		s.log.Warn("token_refresh_failed", zap.String("user_id", s.tokens.User.ID), zap.Error(err))
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if fresh.User.ID == "" {
		fresh.User = s.tokens.User
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.tokens.RefreshToken
	}
	s.tokens = fresh
	s.log.Debug("token_refreshed", zap.String("user_id", fresh.User.ID), zap.Time("expires_at", fresh.ExpiresAt))
	return fresh.AccessToken, nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = nil
}
