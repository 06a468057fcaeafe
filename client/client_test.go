package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	v1 "turnero/pkg/api/v1"
	"turnero/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestClient(t *testing.T, api *fakeAPI, store Store, opts ...Option) (*SessionClient, *navRecorder) {
	t.Helper()
	nav := &navRecorder{}
	opts = append([]Option{WithNavigator(nav)}, opts...)
	c := NewSessionClient(api.baseURL(), store, opts...)
	t.Cleanup(c.Close)
	return c, nav
}

func TestRenewalDelay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		exp      time.Time
		expected time.Duration
	}{
		{"one hour left", now.Add(time.Hour), 59 * time.Minute},
		{"just outside margin", now.Add(61 * time.Second), time.Second},
		{"exactly at margin", now.Add(60 * time.Second), 0},
		{"inside margin", now.Add(30 * time.Second), 0},
		{"already expired", now.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &v1.Session{AccessExp: tt.exp.Unix()}
			if got := renewalDelay(sess, now); got != tt.expected {
				t.Errorf("renewalDelay() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	withExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	withoutExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "x",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := accessExpiry(withExp)
	require.NoError(t, err)
	require.Equal(t, exp.Unix(), got)

	_, err = accessExpiry(withoutExp)
	require.ErrorIs(t, err, ErrMissingExpiry)

	_, err = accessExpiry("not-a-jwt")
	require.Error(t, err)
}

func TestLogin_StoresExpiryFromClaimAndArmsTimer(t *testing.T) {
	api := newFakeAPI(t)
	now := time.Now()
	store := NewMemoryStore()
	c, _ := newTestClient(t, api, store, WithClock(fixedClock(now)))

	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	sess := c.Session()
	require.NotNil(t, sess)
	claimExp, err := accessExpiry(sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, claimExp, sess.AccessExp)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, sess.AccessToken, persisted.AccessToken)
	require.Equal(t, sess.AccessExp, persisted.AccessExp)
	require.Equal(t, "admin", persisted.User.Role())
	require.Equal(t, "padel-norte", c.User().Tenant())

	at, armed := c.NextRenewal()
	require.True(t, armed)
	delay := at.Sub(now)
	require.InDelta(t, (3540 * time.Second).Seconds(), delay.Seconds(), 2)
	require.Equal(t, PendingRenewal, c.State())
}

func TestLogin_RejectedKeepsPriorSession(t *testing.T) {
	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, nil)

	err := c.Login(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Equal(t, Unauthenticated, c.State())
	require.Nil(t, c.Session())

	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	before := c.Session()

	err = c.Login(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, before.AccessToken, c.Session().AccessToken)
	require.Equal(t, PendingRenewal, c.State())
}

func TestSchedule_TwiceLeavesOneLiveTimer(t *testing.T) {
	api := newFakeAPI(t)
	now := time.Now()
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), api.seedSession(now.Add(61*time.Second))))
	c, _ := newTestClient(t, api, store, WithClock(fixedClock(now)))

	require.NoError(t, c.Restore(context.Background()))
	c.ScheduleProactiveRenewal()
	c.ScheduleProactiveRenewal()

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	require.EqualValues(t, 1, api.refreshCalls.Load())

	_, armed := c.NextRenewal()
	require.True(t, armed)
}

func TestSchedule_InsideMarginRenewsOnNextTick(t *testing.T) {
	api := newFakeAPI(t)
	now := time.Now()
	store := NewMemoryStore()
	seeded := api.seedSession(now.Add(30 * time.Second))
	require.NoError(t, store.Save(context.Background(), seeded))
	c, _ := newTestClient(t, api, store)

	require.NoError(t, c.Restore(context.Background()))

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		sess := c.Session()
		return sess != nil && sess.AccessToken != seeded.AccessToken
	}, time.Second, 5*time.Millisecond)
}

func TestRestore_ExpiredTokenRenewsImmediately(t *testing.T) {
	api := newFakeAPI(t)
	store := NewMemoryStore()
	seeded := api.seedSession(time.Now().Add(-10 * time.Minute))
	require.NoError(t, store.Save(context.Background(), seeded))
	c, _ := newTestClient(t, api, store)

	require.NoError(t, c.Restore(context.Background()))

	require.Eventually(t, func() bool {
		return c.State() == PendingRenewal && api.refreshCalls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	sess := c.Session()
	require.Greater(t, sess.AccessExp, time.Now().Unix())
	require.Equal(t, seeded.RefreshToken, sess.RefreshToken)
	require.Equal(t, seeded.User.Email(), sess.User.Email())
}

func TestRestore_NothingPersisted(t *testing.T) {
	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, nil)

	require.NoError(t, c.Restore(context.Background()))
	require.Equal(t, Unauthenticated, c.State())
	_, armed := c.NextRenewal()
	require.False(t, armed)
}

func TestRenew_SuccessRearmsAndPersists(t *testing.T) {
	api := newFakeAPI(t)
	now := time.Now()
	store := NewMemoryStore()
	c, _ := newTestClient(t, api, store, WithClock(fixedClock(now)))
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	before := c.Session()

	// force a distinct exp claim
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, c.RenewAccessToken(context.Background()))

	after := c.Session()
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.Greater(t, after.AccessExp, before.AccessExp)
	claimExp, err := accessExpiry(after.AccessToken)
	require.NoError(t, err)
	require.Equal(t, claimExp, after.AccessExp)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, after.AccessToken, persisted.AccessToken)
	require.Equal(t, after.AccessExp, persisted.AccessExp)

	at, armed := c.NextRenewal()
	require.True(t, armed)
	require.Equal(t, now.Add(renewalDelay(after, now)), at)
	require.Equal(t, PendingRenewal, c.State())
}

func TestRenew_FailureLogsOut(t *testing.T) {
	api := newFakeAPI(t)
	api.refreshStatus.Store(400)
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), api.seedSession(time.Now().Add(-time.Minute))))
	c, nav := newTestClient(t, api, store)

	require.NoError(t, c.Restore(context.Background()))

	require.Eventually(t, func() bool { return c.State() == Unauthenticated }, 2*time.Second, 5*time.Millisecond)
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, persisted)
	_, armed := c.NextRenewal()
	require.False(t, armed)
	_, ok := c.AccessToken()
	require.False(t, ok)
	require.Eventually(t, func() bool {
		reasons := nav.all()
		return len(reasons) == 1 && reasons[0] == LogoutSessionExpired
	}, time.Second, 5*time.Millisecond)
	// forced logout must not call the revoke endpoint
	require.EqualValues(t, 0, api.logoutCalls.Load())
}

func TestRenew_NetworkErrorLogsOut(t *testing.T) {
	api := newFakeAPI(t)
	c, nav := newTestClient(t, api, nil)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	api.srv.Close()
	err := c.RenewAccessToken(context.Background())
	require.Error(t, err)
	require.Equal(t, Unauthenticated, c.State())
	require.Equal(t, []LogoutReason{LogoutSessionExpired}, nav.all())
}

func TestRenew_WithoutRefreshTokenIsNoop(t *testing.T) {
	api := newFakeAPI(t)
	c, nav := newTestClient(t, api, nil)

	err := c.RenewAccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.EqualValues(t, 0, api.refreshCalls.Load())
	require.Empty(t, nav.all())
}

func TestRenew_ConcurrentCallersShareOneExchange(t *testing.T) {
	api := newFakeAPI(t)
	gate := api.holdRefresh()
	c, _ := newTestClient(t, api, nil)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.RenewAccessToken(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return c.State() == Renewing }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestRenew_CallerCancelDoesNotLogOut(t *testing.T) {
	api := newFakeAPI(t)
	gate := api.holdRefresh()
	c, nav := newTestClient(t, api, nil)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.RenewAccessToken(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	close(gate)
	require.Eventually(t, func() bool { return c.State() == PendingRenewal }, time.Second, 5*time.Millisecond)
	require.Empty(t, nav.all())
}

func TestLogout_ClearsEverything(t *testing.T) {
	api := newFakeAPI(t)
	store := NewMemoryStore()
	c, nav := newTestClient(t, api, store)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	require.NoError(t, c.Logout(context.Background()))

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, persisted)
	require.Nil(t, c.Session())
	require.Equal(t, Unauthenticated, c.State())
	_, armed := c.NextRenewal()
	require.False(t, armed)
	require.Equal(t, []LogoutReason{LogoutUser}, nav.all())
	require.EqualValues(t, 1, api.logoutCalls.Load())

	// the intercepted client no longer sends a token
	err = c.GetJSON(context.Background(), "/turnos/", nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestClose_KeepsPersistedSession(t *testing.T) {
	api := newFakeAPI(t)
	store := NewMemoryStore()
	c, nav := newTestClient(t, api, store)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	c.Close()

	_, armed := c.NextRenewal()
	require.False(t, armed)
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted)
	require.Empty(t, nav.all())
}

func TestTokenSource(t *testing.T) {
	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, nil)

	_, err := c.TokenSource().Token()
	require.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	tok, err := c.TokenSource().Token()
	require.NoError(t, err)
	access, _ := c.AccessToken()
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.True(t, tok.Valid())
}

// flakyStore is a MemoryStore whose Save can be switched to fail.
type flakyStore struct {
	*MemoryStore
	failSave atomic.Bool
}

func (f *flakyStore) Save(ctx context.Context, s *v1.Session) error {
	if f.failSave.Load() {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, s)
}

func TestRenew_PersistFailureKeepsSessionAndStoredPair(t *testing.T) {
	api := newFakeAPI(t)
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	c, nav := newTestClient(t, api, store)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	before := c.Session()

	store.failSave.Store(true)
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, c.RenewAccessToken(context.Background()))

	after := c.Session()
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.Equal(t, PendingRenewal, c.State())
	_, armed := c.NextRenewal()
	require.True(t, armed)
	require.Empty(t, nav.all())

	// the stored record is the previous, still self-consistent pair
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, before.AccessToken, persisted.AccessToken)
	claimExp, err := accessExpiry(persisted.AccessToken)
	require.NoError(t, err)
	require.Equal(t, claimExp, persisted.AccessExp)

	// a later restart resumes from it
	store.failSave.Store(false)
	restarted, _ := newTestClient(t, api, store)
	require.NoError(t, restarted.Restore(context.Background()))
	require.Equal(t, PendingRenewal, restarted.State())
}

func TestClose_DuringRenewalLeavesSettledState(t *testing.T) {
	api := newFakeAPI(t)
	store := NewMemoryStore()
	c, nav := newTestClient(t, api, store)
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	gate := api.holdRefresh()

	errs := make(chan error, 1)
	go func() { errs <- c.RenewAccessToken(context.Background()) }()
	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, Renewing, c.State())

	c.Close()
	require.ErrorIs(t, <-errs, context.Canceled)
	close(gate)

	require.Equal(t, AuthenticatedFresh, c.State())
	_, armed := c.NextRenewal()
	require.False(t, armed)
	require.Empty(t, nav.all())
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted)
}
