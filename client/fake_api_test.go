package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	v1 "turnero/pkg/api/v1"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSigningKey = []byte("turnero-client-test-key")

const (
	testEmail    = "a@b.com"
	testPassword = "secret"
)

// fakeAPI speaks the three auth endpoints plus a protected /turnos/ resource.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	accessTTL     time.Duration
	refreshStatus atomic.Int32 // non-zero forces that status on /token/refresh/
	turnosAlways  atomic.Int32 // non-zero forces that status on /turnos/

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
	turnosCalls  atomic.Int32
	logoutCalls  atomic.Int32

	mu          sync.Mutex
	refreshGate chan struct{}
	refresh     map[string]bool
	revoked     map[string]bool
	turnosAt    []string // Authorization header of every /turnos/ hit
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:         t,
		accessTTL: time.Hour,
		refresh:   make(map[string]bool),
		revoked:   make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token/{$}", f.handleLogin)
	mux.HandleFunc("POST /api/token/refresh/{$}", f.handleRefresh)
	mux.HandleFunc("GET /api/auth/yo/{$}", f.handleWhoAmI)
	mux.HandleFunc("POST /api/auth/logout/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/turnos/{$}", f.handleTurnos)
	mux.HandleFunc("POST /api/turnos/{$}", f.handleTurnos)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) baseURL() string {
	return f.srv.URL + "/api"
}

func (f *fakeAPI) issueAccess(exp time.Time) string {
	f.t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   testEmail,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        uuid.NewString(),
	}).SignedString(testSigningKey)
	if err != nil {
		f.t.Fatalf("sign access token: %v", err)
	}
	return tok
}

func (f *fakeAPI) issueRefresh() string {
	r := "refresh-" + uuid.NewString()
	f.mu.Lock()
	f.refresh[r] = true
	f.mu.Unlock()
	return r
}

// seedSession builds a persisted session whose access token expires at exp.
func (f *fakeAPI) seedSession(exp time.Time) *v1.Session {
	return &v1.Session{
		AccessToken:  f.issueAccess(exp),
		RefreshToken: f.issueRefresh(),
		AccessExp:    exp.Unix(),
		User:         v1.UserProfile{"email": testEmail, "role": "admin"},
	}
}

// holdRefresh parks every refresh request until the returned channel is closed.
func (f *fakeAPI) holdRefresh() chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	f.refreshGate = gate
	f.mu.Unlock()
	return gate
}

func (f *fakeAPI) revoke(access string) {
	f.mu.Lock()
	f.revoked[access] = true
	f.mu.Unlock()
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return false
	}
	f.mu.Lock()
	revoked := f.revoked[raw]
	f.mu.Unlock()
	if revoked {
		return false
	}
	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return testSigningKey, nil
	})
	return err == nil && tok.Valid
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.loginCalls.Add(1)
	var body v1.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}
	if body.Email != testEmail || body.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, v1.ErrorResponse{Error: "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, v1.TokenPair{
		Access:  f.issueAccess(time.Now().Add(f.accessTTL)),
		Refresh: f.issueRefresh(),
	})
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	gate := f.refreshGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if status := f.refreshStatus.Load(); status != 0 {
		writeJSON(w, int(status), v1.ErrorResponse{Error: "refresh rejected"})
		return
	}
	var body v1.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}
	f.mu.Lock()
	ok := f.refresh[body.Refresh]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, v1.ErrorResponse{Error: "invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, v1.RefreshResponse{Access: f.issueAccess(time.Now().Add(f.accessTTL))})
}

func (f *fakeAPI) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, v1.ErrorResponse{Error: "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": testEmail, "role": "admin", "tenant": "padel-norte"})
}

func (f *fakeAPI) handleTurnos(w http.ResponseWriter, r *http.Request) {
	f.turnosCalls.Add(1)
	f.mu.Lock()
	f.turnosAt = append(f.turnosAt, r.Header.Get("Authorization"))
	f.mu.Unlock()
	if status := f.turnosAlways.Load(); status != 0 {
		writeJSON(w, int(status), v1.ErrorResponse{Error: "forced"})
		return
	}
	if !f.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, v1.ErrorResponse{Error: "unauthorized"})
		return
	}
	if r.Method == http.MethodPost {
		var booking map[string]any
		if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
			writeJSON(w, http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, booking)
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "cancha": "central", "hora": "19:00"}})
}

type navRecorder struct {
	mu      sync.Mutex
	reasons []LogoutReason
}

func (n *navRecorder) NavigateToLogin(reason LogoutReason) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (f *fakeAPI) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.turnosAt...)
}

func (n *navRecorder) all() []LogoutReason {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]LogoutReason(nil), n.reasons...)
}
