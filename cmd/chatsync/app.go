package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gwi.com/chatsync/internal/auth"
	"gwi.com/chatsync/internal/config"
	"gwi.com/chatsync/internal/core"
	"gwi.com/chatsync/internal/generator"
	"gwi.com/chatsync/internal/graphql"
	"gwi.com/chatsync/internal/logger"
	"gwi.com/chatsync/internal/metrics"
	"gwi.com/chatsync/internal/store"
)

const defaultLocalEmail = "dev@localhost"

// app is one signed-in client session wired to the configured backend.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	auth    *auth.Session
	session *core.Session
	closers []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.Log, metrics: metrics.New()}

	var backend core.Backend
	var err error
	switch cfg.Backend {
	case config.BackendGraphQL:
		backend, err = a.graphQLBackend(ctx)
	default:
		backend, err = a.localBackend(ctx)
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session = core.NewSession(core.Options{
		Auth:                  a.auth,
		Backend:               backend,
		Recorder:              a.metrics,
		Logger:                a.log,
		AllowConcurrentSubmit: cfg.AllowConcurrentSubmit,
		ReconnectInterval:     cfg.FeedReconnectInterval,
	})
	a.closers = append(a.closers, a.session.Close)
	a.log.Info("session_ready", zap.String("backend", cfg.Backend), zap.String("user_id", a.auth.UserID()))
	return a, nil
}

func (a *app) graphQLBackend(ctx context.Context) (core.Backend, error) {
	if a.cfg.AccessToken != "" {
		sess, err := auth.NewStaticSession(a.cfg.AccessToken)
		if err != nil {
			return nil, err
		}
		a.auth = sess
	} else {
		client := auth.NewClient(a.cfg.AuthURL, &http.Client{Timeout: a.cfg.RequestTimeout})
		tokens, err := client.SignIn(ctx, a.cfg.AuthEmail, a.cfg.AuthPassword)
		if err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}
		a.auth = auth.NewSession(tokens, client, a.log)
	}

	httpClient := &http.Client{Timeout: a.cfg.RequestTimeout}
	return graphql.NewBackend(
		graphql.NewClient(a.cfg.GraphQLURL, a.auth, httpClient),
		graphql.NewSubscriber(a.cfg.WebsocketURL(), a.auth, a.log),
	), nil
}

func (a *app) localBackend(ctx context.Context) (core.Backend, error) {
	db, err := store.NewSQLiteStore(a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	responder, err := a.responder(ctx)
	if err != nil {
		return nil, err
	}

	hub := store.NewHub()
	poolCtx, cancel := context.WithCancel(context.Background())
	pool := generator.NewPool(db, hub, responder, a.cfg.GeneratorWorkers, a.log)
	a.closers = append(a.closers, func() {
		cancel()
		pool.Stop()
	})
	if err := pool.Start(poolCtx); err != nil {
		return nil, fmt.Errorf("start generator: %w", err)
	}

	provider := auth.NewLocalProvider(db, a.cfg.JWTSecret)
	tokens, err := localSignIn(ctx, db, provider, a.cfg.AuthEmail, a.cfg.AuthPassword)
	if err != nil {
		return nil, err
	}
	a.auth = auth.NewSession(tokens, provider, a.log)
	return store.NewBackend(db, hub, pool, a.auth.UserID(), a.log), nil
}

// localSignIn signs in, creating the account on first use.
func localSignIn(ctx context.Context, db *store.SQLiteStore, provider *auth.LocalProvider, email, password string) (*auth.Tokens, error) {
	if email == "" {
		email = defaultLocalEmail
	}
	if password == "" {
		password = "local"
	}
	existing, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return provider.SignUp(ctx, email, password, "")
	}
	tokens, err := provider.SignIn(ctx, email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return nil, fmt.Errorf("local user %s: %w", email, err)
	}
	return tokens, err
}

func (a *app) responder(ctx context.Context) (generator.Responder, error) {
	if a.cfg.GeminiAPIKey == "" {
		a.log.Info("generator_echo_mode")
		return generator.EchoResponder{}, nil
	}
	llm, err := generator.NewLLMService(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, llm.Close)
	return llm, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
