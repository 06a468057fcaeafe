package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"turnero/pkg/constraints"
	"turnero/pkg/logger"

	"go.uber.org/zap"
)

type retriedKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

func isAuthEndpoint(path string) bool {
	return strings.HasSuffix(path, constraints.PathToken) ||
		strings.HasSuffix(path, constraints.PathTokenRefresh)
}

// authTransport attaches the current access token and recovers from a single 401 per
// request by renewing the token and replaying the request once.
type authTransport struct {
	client *SessionClient
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, authed := t.client.AccessToken()

	first := req.Clone(req.Context())
	if authed {
		first.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := t.base.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if !authed || retried(req.Context()) || isAuthEndpoint(req.URL.Path) {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		logger.Warn("401 on a request whose body cannot be replayed", zap.String("path", req.URL.Path))
		return resp, nil
	}

	// Another request may have renewed the token while this one was in flight.
	if current, ok := t.client.AccessToken(); !ok || current == token {
		if rerr := t.client.renew(req.Context(), TriggerUnauthorized); rerr != nil {
			t.client.observer.RecordRetry(false)
			logger.Warn("could not recover from 401",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Error(rerr))
			return resp, nil
		}
	}
	fresh, ok := t.client.AccessToken()
	if !ok {
		t.client.observer.RecordRetry(false)
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	replay := req.Clone(markRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+fresh)
	t.client.observer.RecordRetry(true)
	logger.Debug("replaying request after token renewal", zap.String("path", req.URL.Path))
	return t.base.RoundTrip(replay)
}

// HTTPClient returns a client that authenticates every request with the session.
func (c *SessionClient) HTTPClient() *http.Client {
	return c.api
}

// Do sends req through the authenticating client. The response is returned as is.
func (c *SessionClient) Do(req *http.Request) (*http.Response, error) {
	return c.api.Do(req)
}

// GetJSON fetches path relative to the API base and decodes the body into out.
func (c *SessionClient) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.send(c.api, req, out)
}

// GetRaw fetches path and returns the undecoded body, for callers printing JSON as is.
func (c *SessionClient) GetRaw(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
