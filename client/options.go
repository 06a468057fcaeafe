package client

import (
	"net/http"
	"time"
)

// Observer receives lifecycle events, typically to feed metrics.
type Observer interface {
	ObserveRenewal(trigger string, err error, elapsed time.Duration)
	RecordRetry(recovered bool)
	RecordLogout(reason LogoutReason)
	SetState(state State)
}

type nopObserver struct{}

func (nopObserver) ObserveRenewal(string, error, time.Duration) {}
func (nopObserver) RecordRetry(bool)                            {}
func (nopObserver) RecordLogout(LogoutReason)                   {}
func (nopObserver) SetState(State)                              {}

// Navigator is asked to show the login surface whenever the session ends.
type Navigator interface {
	NavigateToLogin(reason LogoutReason)
}

type NavigatorFunc func(reason LogoutReason)

func (f NavigatorFunc) NavigateToLogin(reason LogoutReason) { f(reason) }

type Option func(*SessionClient)

// WithHTTPClient sets the underlying client. Its transport is wrapped, not replaced,
// for authenticated calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SessionClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *SessionClient) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *SessionClient) {
		if n != nil {
			c.navigator = n
		}
	}
}

// WithClock overrides the wall clock used to compute renewal delays.
func WithClock(now func() time.Time) Option {
	return func(c *SessionClient) {
		if now != nil {
			c.now = now
		}
	}
}
