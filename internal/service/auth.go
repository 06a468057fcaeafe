package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"turnero/internal/config"
	v1 "turnero/pkg/api/v1"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	RedisKeyPrefix = "turnero:auth:refresh:"
	Issuer         = "turnero-auth-stub"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSessionExpired     = errors.New("session expired")
)

type UserClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Tenant    string `json:"tenant,omitempty"`
	TokenType string `json:"typ"`
	// SessionID is the jti of the refresh token the access token descends from.
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type account struct {
	id     string
	email  string
	role   string
	tenant string
	hash   []byte
}

type AuthService struct {
	redis           redis.UniversalClient
	signingKey      []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	accounts        map[string]*account
	now             func() time.Time
}

// NewAuthService hashes the configured passwords up front. Passwords that already
// look like bcrypt hashes are used as is.
func NewAuthService(rdb redis.UniversalClient, cfg config.AuthConfig) (*AuthService, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("auth: signing key is empty")
	}
	s := &AuthService{
		redis:           rdb,
		signingKey:      []byte(cfg.SigningKey),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		accounts:        make(map[string]*account, len(cfg.Users)),
		now:             time.Now,
	}
	for i, u := range cfg.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return nil, fmt.Errorf("auth: user %d has no email", i)
		}
		hash := []byte(u.Password)
		if _, err := bcrypt.Cost(hash); err != nil {
			hash, err = bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("auth: hash password for %s: %w", email, err)
			}
		}
		s.accounts[email] = &account{
			id:     fmt.Sprintf("%d", 1001+i),
			email:  email,
			role:   u.Role,
			tenant: u.Tenant,
			hash:   hash,
		}
	}
	return s, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*v1.TokenPair, error) {
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sid := uuid.New().String()
	refresh, err := s.sign(acc.claims(tokenTypeRefresh, sid), s.refreshTokenTTL, sid)
	if err != nil {
		return nil, err
	}
	access, err := s.sign(acc.claims(tokenTypeAccess, sid), s.accessTokenTTL, uuid.New().String())
	if err != nil {
		return nil, err
	}

	if err := s.redis.Set(ctx, RedisKeyPrefix+sid, acc.id, s.refreshTokenTTL).Err(); err != nil {
		return nil, err
	}
	return &v1.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid, allow-listed refresh token for a new access token.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*v1.RefreshResponse, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	owner, err := s.redis.Get(ctx, RedisKeyPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if owner != claims.UserID {
		return nil, ErrTokenInvalid
	}

	next := *claims
	next.TokenType = tokenTypeAccess
	next.SessionID = claims.ID
	access, err := s.sign(next, s.accessTokenTTL, uuid.New().String())
	if err != nil {
		return nil, err
	}
	return &v1.RefreshResponse{Access: access}, nil
}

// VerifyAccess validates signature, expiry and token type of an access token.
func (s *AuthService) VerifyAccess(token string) (*OperatorInfo, error) {
	claims, err := s.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &OperatorInfo{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		Tenant:    claims.Tenant,
		SessionID: claims.SessionID,
	}, nil
}

// Logout drops the refresh allow-list entry of the caller's session.
func (s *AuthService) Logout(ctx context.Context, op *OperatorInfo) error {
	if op.SessionID == "" {
		return nil
	}
	return s.redis.Del(ctx, RedisKeyPrefix+op.SessionID).Err()
}

func (a *account) claims(typ, sid string) UserClaims {
	c := UserClaims{
		UserID:    a.id,
		Email:     a.email,
		Role:      a.role,
		Tenant:    a.tenant,
		TokenType: typ,
	}
	if typ == tokenTypeAccess {
		c.SessionID = sid
	}
	return c
}

func (s *AuthService) sign(c UserClaims, ttl time.Duration, jti string) (string, error) {
	now := s.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   c.Email,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    Issuer,
		ID:        jti,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.signingKey)
}

func (s *AuthService) parse(raw, typ string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &UserClaims{}, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.TokenType != typ {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
