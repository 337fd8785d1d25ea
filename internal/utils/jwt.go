package utils // package utils provides password hashing and token helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
)

// TokenKind separates access tokens from refresh tokens.  Each kind is
// signed with its own secret.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Verification failures.  Callers normalise all of them to Unauthorized.
var (
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrTokenExpired     = errors.New("token: expired")
	ErrMalformedToken   = errors.New("token: malformed")
)

// Subject is what a token asserts about its holder.
type Subject struct {
	ID                 string
	Role               model.Role
	FirstLogin         bool
	MustChangePassword bool
}

// Claims is the JWT payload for both kinds.  The subject id travels in the
// registered "sub" claim and refresh tokens carry a unique "jti".
type Claims struct {
	Role               model.Role `json:"role"`
	Kind               TokenKind  `json:"typ"`
	FirstLogin         bool       `json:"firstLogin,omitempty"`
	MustChangePassword bool       `json:"mustChangePassword,omitempty"`
	jwt.RegisteredClaims
}

// Holder returns the subject described by the claims.
func (c *Claims) Holder() Subject {
	return Subject{
		ID:                 c.RegisteredClaims.Subject,
		Role:               c.Role,
		FirstLogin:         c.FirstLogin,
		MustChangePassword: c.MustChangePassword,
	}
}

// IssuedToken is a signed token with its id and expiry.
type IssuedToken struct {
	Token string
	ID    string // jti, empty for access tokens
	Exp   time.Time
}

// TokenManager signs and verifies HS256 tokens.  It is read-only after
// construction and safe for concurrent use.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	// Now is the clock used for issuing and verifying.
	Now func() time.Time
}

// NewTokenManager requires two non-empty, distinct secrets.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token manager: empty secret")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("token manager: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token manager: non-positive ttl")
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		Now:           time.Now,
	}, nil
}

// AccessTTL is the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL is the configured refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess signs a short-lived access token for s.
func (m *TokenManager) IssueAccess(s Subject) (IssuedToken, error) {
	return m.issue(s, KindAccess, "")
}

// IssueRefresh signs a refresh token for s with a fresh jti.
func (m *TokenManager) IssueRefresh(s Subject) (IssuedToken, error) {
	return m.issue(s, KindRefresh, uuid.NewString())
}

func (m *TokenManager) issue(s Subject, kind TokenKind, jti string) (IssuedToken, error) {
	if s.ID == "" || !s.Role.Valid() {
		return IssuedToken{}, ErrMalformedToken
	}
	now := m.Now().UTC()
	exp := now.Add(m.ttl(kind))
	claims := Claims{
		Role:               s.Role,
		Kind:               kind,
		FirstLogin:         s.FirstLogin,
		MustChangePassword: s.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret(kind))
	if err != nil {
		return IssuedToken{}, errors.Wrap(err, "sign token")
	}
	return IssuedToken{Token: signed, ID: jti, Exp: exp}, nil
}

// Verify checks the signature with the kind-specific secret and returns the
// claims.  A token without a subject or a known role, or one minted for the
// other kind, is malformed even when the signature holds.
func (m *TokenManager) Verify(raw string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return m.secret(kind), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrMalformedToken
	}
	if claims.RegisteredClaims.Subject == "" || !claims.Role.Valid() || claims.Kind != kind {
		return nil, ErrMalformedToken
	}
	if kind == KindRefresh && claims.ID == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func (m *TokenManager) secret(kind TokenKind) []byte {
	if kind == KindRefresh {
		return m.refreshSecret
	}
	return m.accessSecret
}

func (m *TokenManager) ttl(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

// HashRefreshRaw returns the SHA-256 hash of a refresh token id as a hex
// string.  Only the hash is persisted.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
