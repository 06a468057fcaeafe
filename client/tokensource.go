package client

import (
	"context"

	"golang.org/x/oauth2"
)

type sessionTokenSource struct {
	c *SessionClient
}

// TokenSource exposes the managed access token to code built on golang.org/x/oauth2.
// An expired token is renewed before it is handed out.
func (c *SessionClient) TokenSource() oauth2.TokenSource {
	return sessionTokenSource{c: c}
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	sess := s.c.Session()
	if sess == nil {
		return nil, ErrNotAuthenticated
	}
	if sess.Expired(s.c.now()) {
		if err := s.c.renew(context.Background(), TriggerManual); err != nil {
			return nil, err
		}
		if sess = s.c.Session(); sess == nil {
			return nil, ErrNotAuthenticated
		}
	}
	return &oauth2.Token{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		Expiry:      sess.ExpiresAt(),
	}, nil
}
