package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/chatsync/internal/model"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("secret", "user-1", time.Hour)
	require.NoError(t, err)

	userID, err := ValidateJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = ValidateJWT("other-secret", token)
	assert.Error(t, err)

	userID, exp, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestParseClaimsPrefersHasuraUserID(t *testing.T) {
	claims := jwt.MapClaims{"sub": "subject"}
	claims[hasuraClaimsKey] = map[string]interface{}{"x-hasura-user-id": "hasura-user"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("whatever"))
	require.NoError(t, err)

	userID, exp, err := ParseClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, "hasura-user", userID)
	assert.True(t, exp.IsZero())

	_, _, err = ParseClaims("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter2", hash))
	assert.False(t, CheckPasswordHash("hunter3", hash))
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	access, err := GenerateJWT("srv", "user-42", time.Hour)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/signin/email-password", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":401,"error":"invalid-email-password","message":"Incorrect email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"session":{"accessToken":"` + access + `","accessTokenExpiresIn":900,"refreshToken":"r1","user":{"id":"user-42","email":"a@b.c","displayName":"A"}}}`))
	})
	mux.HandleFunc("/signup/email-password", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session":null}`))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"` + access + `","accessTokenExpiresIn":900,"refreshToken":"r2"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSignIn(t *testing.T) {
	srv := newAuthServer(t)
	c := NewClient(srv.URL+"/", nil)

	tokens, err := c.SignIn(context.Background(), "a@b.c", "correct")
	require.NoError(t, err)
	assert.Equal(t, "user-42", tokens.User.ID)
	assert.Equal(t, "A", tokens.User.DisplayName)
	assert.Equal(t, "r1", tokens.RefreshToken)
	assert.False(t, tokens.ExpiresAt.IsZero())

	_, err = c.SignIn(context.Background(), "a@b.c", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid-email-password", apiErr.Code)
}

func TestClientSignUpWithoutSession(t *testing.T) {
	srv := newAuthServer(t)
	tokens, err := NewClient(srv.URL, nil).SignUp(context.Background(), "a@b.c", "pw", "A")
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestClientRefreshReadsUserFromClaims(t *testing.T) {
	srv := newAuthServer(t)
	tokens, err := NewClient(srv.URL, nil).Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "user-42", tokens.User.ID)
	assert.Equal(t, "r2", tokens.RefreshToken)
}

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) Refresh(_ context.Context, refreshToken string) (*Tokens, error) {
	r.calls++
	return &Tokens{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestSessionRefreshesNearExpiry(t *testing.T) {
	ref := &countingRefresher{}
	s := NewSession(&Tokens{
		AccessToken:  "stale",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(30 * time.Second),
		User:         model.User{ID: "u"},
	}, ref, nil)

	assert.True(t, s.Authenticated())
	tok, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, "u", s.UserID(), "user survives a refresh without user payload")

	tok, err = s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, ref.calls)

	s.SignOut()
	assert.False(t, s.Authenticated())
	_, err = s.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
}

func TestStaticSession(t *testing.T) {
	token, err := GenerateJWT("secret", "static-user", time.Hour)
	require.NoError(t, err)

	s, err := NewStaticSession(token)
	require.NoError(t, err)
	assert.Equal(t, "static-user", s.UserID())
	got, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memoryUsers) CreateUser(_ context.Context, email, hash, name string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{ID: "id-" + email, Email: email, DisplayName: name, PasswordHash: hash}
	m.users[email] = u
	return &u, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func TestLocalProvider(t *testing.T) {
	p := NewLocalProvider(&memoryUsers{users: map[string]model.User{}}, "secret")
	ctx := context.Background()

	tokens, err := p.SignUp(ctx, " Luke@Rebels.org ", "force", "Luke")
	require.NoError(t, err)
	assert.Equal(t, "id-luke@rebels.org", tokens.User.ID)
	assert.Empty(t, tokens.User.PasswordHash)

	_, err = p.SignUp(ctx, "luke@rebels.org", "again", "")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = p.SignIn(ctx, "luke@rebels.org", "dark side")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tokens, err = p.SignIn(ctx, "luke@rebels.org", "force")
	require.NoError(t, err)
	userID, err := ValidateJWT("secret", tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "id-luke@rebels.org", userID)

	refreshed, err := p.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "id-luke@rebels.org", refreshed.User.ID)
}
