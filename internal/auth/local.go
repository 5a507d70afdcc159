package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gwi.com/chatsync/internal/model"
)

const localTokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
)

// UserStore is the persistence the local provider needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, displayName string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// LocalProvider signs users in against the local SQLite backend and issues
// tokens with the same claims as the hosted auth service.
type LocalProvider struct {
	users  UserStore
	secret string
}

func NewLocalProvider(users UserStore, secret string) *LocalProvider {
	return &LocalProvider{users: users, secret: secret}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*Tokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	existing, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := p.users.CreateUser(ctx, email, hash, displayName)
	if err != nil {
		return nil, err
	}
	return p.issue(*user)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	user, err := p.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return p.issue(*user)
}

// Refresh re-issues a token for a still valid local token. Local sessions
// use the access token itself as refresh token.
func (p *LocalProvider) Refresh(_ context.Context, refreshToken string) (*Tokens, error) {
	userID, err := ValidateJWT(p.secret, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	return p.issue(model.User{ID: userID})
}

func (p *LocalProvider) issue(user model.User) (*Tokens, error) {
	token, err := GenerateJWT(p.secret, user.ID, localTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	user.PasswordHash = ""
	return &Tokens{
		AccessToken:  token,
		RefreshToken: token,
		ExpiresAt:    time.Now().Add(localTokenTTL),
		User:         user,
	}, nil
}
