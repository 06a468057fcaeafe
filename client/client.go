package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	v1 "turnero/pkg/api/v1"
	"turnero/pkg/constraints"
	"turnero/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxErrorBody = 4 << 10

// SessionClient owns one authenticated session against the turnero API: it logs in,
// keeps the access token fresh ahead of expiry and logs out when renewal is impossible.
type SessionClient struct {
	baseURL   string
	http      *http.Client // auth endpoints, never intercepted
	api       *http.Client // Bearer injection + 401 recovery
	store     Store
	observer  Observer
	navigator Navigator
	now       func() time.Time

	mu          sync.Mutex
	session     *v1.Session
	state       State
	timer       *time.Timer
	timerGen    uint64
	nextRenewal time.Time

	refreshGroup singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
}

// logNavigation is the default Navigator for programs without a login surface.
func logNavigation(reason LogoutReason) {
	logger.Info("login required", zap.String("route", constraints.LoginPath), zap.String("reason", string(reason)))
}

func NewSessionClient(baseURL string, store Store, opts ...Option) *SessionClient {
	if baseURL == "" {
		baseURL = constraints.DefaultAPIBase
	}
	if store == nil {
		store = NewMemoryStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &SessionClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		store:     store,
		observer:  nopObserver{},
		navigator: NavigatorFunc(logNavigation),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.api = &http.Client{
		Transport:     &authTransport{client: c, base: base},
		Timeout:       c.http.Timeout,
		Jar:           c.http.Jar,
		CheckRedirect: c.http.CheckRedirect,
	}
	c.observer.SetState(Unauthenticated)
	return c
}

// Login exchanges credentials for a token pair. On failure any previous session is kept.
func (c *SessionClient) Login(ctx context.Context, email, password string) error {
	var pair v1.TokenPair
	err := c.postJSON(ctx, constraints.PathToken, v1.LoginRequest{Email: email, Password: password}, &pair)
	if err != nil {
		if IsClientError(err) {
			logger.Warn("login rejected", zap.String("email", email), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		logger.Error("login request failed", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("login: %w", err)
	}
	if pair.Refresh == "" {
		return fmt.Errorf("login: response carries no refresh token")
	}
	exp, err := accessExpiry(pair.Access)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	user, err := c.fetchProfile(ctx, pair.Access)
	if err != nil {
		logger.Warn("profile fetch failed, continuing without profile", zap.Error(err))
	}

	sess := &v1.Session{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		AccessExp:    exp,
		User:         user,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.session = sess
	c.setStateLocked(AuthenticatedFresh)
	c.scheduleLocked()

	logger.Info("login succeeded",
		zap.String("email", email),
		zap.String("role", user.Role()),
		zap.Time("access_expires_at", sess.ExpiresAt()))
	return nil
}

// Restore resumes a persisted session at startup. An expired access token is renewed
// right away, a valid one gets its renewal timer armed.
func (c *SessionClient) Restore(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load persisted session: %w", err)
	}
	if !sess.Complete() {
		logger.Debug("no persisted session")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	c.setStateLocked(AuthenticatedFresh)
	c.scheduleLocked()

	logger.Info("session restored",
		zap.Time("access_expires_at", sess.ExpiresAt()),
		zap.Bool("expired", sess.Expired(c.now())))
	return nil
}

// Logout ends the session on user request.
func (c *SessionClient) Logout(ctx context.Context) error {
	return c.logout(ctx, "", LogoutUser)
}

// logout clears memory and store and sends the user to the login surface. When
// expectRefresh is set the logout only applies to the session holding that refresh
// token, so a stale renewal failure cannot end a newer session.
func (c *SessionClient) logout(ctx context.Context, expectRefresh string, reason LogoutReason) error {
	c.mu.Lock()
	if expectRefresh != "" && (c.session == nil || c.session.RefreshToken != expectRefresh) {
		c.mu.Unlock()
		return nil
	}
	prev := c.session
	c.stopTimerLocked()
	c.session = nil
	c.setStateLocked(Unauthenticated)
	err := c.store.Clear(ctx)
	c.mu.Unlock()

	if err != nil {
		logger.Error("failed to clear persisted session", zap.Error(err))
	}
	if reason == LogoutUser && prev != nil {
		c.revoke(prev.AccessToken)
	}

	c.observer.RecordLogout(reason)
	logger.Info("logged out", zap.String("reason", string(reason)))
	c.navigator.NavigateToLogin(reason)
	return err
}

// revoke tells the backend to drop the refresh token. Best effort.
func (c *SessionClient) revoke(accessToken string) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+constraints.PathLogout, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("server-side logout failed", zap.Error(err))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// Close stops background work. The persisted session is left in place for the next Restore.
func (c *SessionClient) Close() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
	c.cancel()
}

func (c *SessionClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current session, or nil.
func (c *SessionClient) Session() *v1.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *SessionClient) User() v1.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.User.Clone()
}

func (c *SessionClient) AccessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", false
	}
	return c.session.AccessToken, true
}

// NextRenewal reports when the armed renewal timer fires.
func (c *SessionClient) NextRenewal() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return time.Time{}, false
	}
	return c.nextRenewal, true
}

func (c *SessionClient) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.observer.SetState(s)
}

func (c *SessionClient) fetchProfile(ctx context.Context, accessToken string) (v1.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+constraints.PathWhoAmI, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	var profile v1.UserProfile
	if err := c.send(c.http, req, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (c *SessionClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(c.http, req, out)
}

func (c *SessionClient) send(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkResponse(req, resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func checkResponse(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}
