package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	gql "github.com/hasura/go-graphql-client"
	"go.uber.org/zap"
)

// Subscriber opens one graphql-transport-ws connection per subscription.
// Reconnecting is left to the caller, so a failed connection is reported at
// once instead of being retried here.
type Subscriber struct {
	url    string
	tokens TokenSource
	log    *zap.Logger
}

func NewSubscriber(url string, tokens TokenSource, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{url: url, tokens: tokens, log: log}
}

// Subscribe runs a subscription and calls onData with the data of every
// result. It blocks until ctx is cancelled (returning ctx.Err()), the server
// completes the operation (returning nil) or the connection fails.
func (s *Subscriber) Subscribe(ctx context.Context, query string, variables map[string]interface{}, onData func(json.RawMessage) error) error {
	token, err := accessToken(ctx, s.tokens)
	if err != nil {
		return err
	}
	params := map[string]interface{}{}
	if token != "" {
		params["headers"] = map[string]string{"authorization": "Bearer " + token}
	}

	client := gql.NewSubscriptionClient(s.url).
		WithProtocol(gql.GraphQLWS).
		WithConnectionParams(params).
		WithRetryTimeout(0).
		WithExitWhenNoSubscription(true).
		WithLog(func(args ...interface{}) {
			s.log.Debug("graphql_ws", zap.String("detail", fmt.Sprint(args...)))
		}).
		OnError(func(_ *gql.SubscriptionClient, err error) error {
			return err
		})

	var (
		mu       sync.Mutex
		firstErr error
		stopOnce sync.Once
	)
	stop := func() {
		stopOnce.Do(func() { go func() { _ = client.Close() }() })
	}
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		stop()
	}

	if _, err := client.Exec(query, variables, func(message []byte, err error) error {
		if err != nil {
			fail(translateError(err))
			return nil
		}
		if err := onData(message); err != nil {
			fail(err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to register subscription: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	runErr := client.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	if runErr != nil {
		return fmt.Errorf("subscription to %s failed: %w", s.url, runErr)
	}
	return nil
}
