package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	v1 "turnero/pkg/api/v1"
	"turnero/pkg/constraints"
	"turnero/pkg/logger"

	"go.uber.org/zap"
)

// renewalDelay is how long to wait before renewing sess, never negative.
func renewalDelay(sess *v1.Session, now time.Time) time.Duration {
	delay := sess.ExpiresAt().Sub(now) - constraints.RenewalSafetyMargin
	if delay < 0 {
		return 0
	}
	return delay
}

// ScheduleProactiveRenewal replaces any armed renewal timer with one that fires a
// safety margin before the access token expires, or on the next tick when the token
// is already inside that margin.
func (c *SessionClient) ScheduleProactiveRenewal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleLocked()
}

func (c *SessionClient) scheduleLocked() {
	c.stopTimerLocked()
	if c.session == nil {
		return
	}

	now := c.now()
	delay := renewalDelay(c.session, now)
	gen := c.timerGen
	c.nextRenewal = now.Add(delay)
	c.timer = time.AfterFunc(delay, func() { c.onTimer(gen) })
	c.setStateLocked(PendingRenewal)

	logger.Debug("renewal armed", zap.Duration("delay", delay), zap.Time("at", c.nextRenewal))
}

// stopTimerLocked disarms the timer. Bumping the generation turns a callback that
// already fired but has not taken the lock yet into a no-op.
func (c *SessionClient) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
	c.nextRenewal = time.Time{}
}

func (c *SessionClient) onTimer(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.session == nil || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.nextRenewal = time.Time{}
	c.mu.Unlock()

	if err := c.renew(c.ctx, TriggerTimer); err != nil {
		logger.Warn("scheduled renewal did not complete", zap.Error(err))
	}
}

// RenewAccessToken exchanges the refresh token for a new access token. A failed
// exchange logs the session out. Concurrent callers share a single round-trip.
func (c *SessionClient) RenewAccessToken(ctx context.Context) error {
	return c.renew(ctx, TriggerManual)
}

func (c *SessionClient) renew(ctx context.Context, trigger string) error {
	c.mu.Lock()
	if c.session == nil || c.session.RefreshToken == "" {
		c.mu.Unlock()
		return ErrNoRefreshToken
	}
	refresh := c.session.RefreshToken
	c.mu.Unlock()

	// The round-trip runs on the client's own context: a caller giving up must not
	// abort the exchange for everyone else, nor turn into a forced logout.
	ch := c.refreshGroup.DoChan(refresh, func() (any, error) {
		return nil, c.exchange(refresh, trigger)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SessionClient) exchange(refresh, trigger string) error {
	c.mu.Lock()
	if c.session == nil || c.session.RefreshToken != refresh {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.stopTimerLocked()
	c.setStateLocked(Renewing)
	c.mu.Unlock()

	start := time.Now()
	var out v1.RefreshResponse
	err := c.postJSON(c.ctx, constraints.PathTokenRefresh, v1.RefreshRequest{Refresh: refresh}, &out)
	var exp int64
	if err == nil {
		exp, err = accessExpiry(out.Access)
	}
	c.observer.ObserveRenewal(trigger, err, time.Since(start))

	if err != nil {
		if c.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// client closed mid-flight; keep the persisted session for the next start
			c.mu.Lock()
			if c.session != nil && c.session.RefreshToken == refresh && c.state == Renewing {
				c.setStateLocked(AuthenticatedFresh)
			}
			c.mu.Unlock()
			return err
		}
		logger.Warn("access token renewal failed, ending session",
			zap.String("trigger", trigger), zap.Error(err))
		c.logout(c.ctx, refresh, LogoutSessionExpired)
		return fmt.Errorf("renew access token: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.RefreshToken != refresh {
		// logged out or logged in again while the exchange was in flight
		return ErrNotAuthenticated
	}
	next := c.session.Clone()
	next.AccessToken = out.Access
	next.AccessExp = exp
	if out.Refresh != "" {
		next.RefreshToken = out.Refresh
	}
	if err := c.store.Save(c.ctx, next); err != nil {
		logger.Error("failed to persist renewed session", zap.Error(err))
	}
	c.session = next
	c.scheduleLocked()

	logger.Info("access token renewed",
		zap.String("trigger", trigger),
		zap.Time("access_expires_at", next.ExpiresAt()),
		zap.Duration("latency", time.Since(start)))
	return nil
}
