// Package auth validates the bearer credential presented during the
// WebSocket handshake and extracts the caller's identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrCredentialMissing = errors.New("credential missing")
	ErrCredentialInvalid = errors.New("credential invalid")
	ErrCredentialExpired = errors.New("credential expired")
)

// FailureCode maps an authentication error to the machine-readable code sent
// back in the handshake rejection.
func FailureCode(err error) string {
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return "CredentialMissing"
	case errors.Is(err, ErrCredentialExpired):
		return "CredentialExpired"
	default:
		return "CredentialInvalid"
	}
}

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID   string
	TenantID string
}

type Authenticator interface {
	Authenticate(credential string) (Identity, error)
}

// Claims carries the tenant scope alongside the registered JWT claims.
type Claims struct {
	TenantID string `json:"tenantId"`
	jwt.RegisteredClaims
}

// TokenAuthenticator verifies HMAC-signed bearer tokens.
type TokenAuthenticator struct {
	secret []byte
	issuer string
}

func NewTokenAuthenticator(secret, issuer string) *TokenAuthenticator {
	return &TokenAuthenticator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (a *TokenAuthenticator) Authenticate(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrCredentialMissing
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrCredentialExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	if !token.Valid {
		return Identity{}, ErrCredentialInvalid
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return Identity{}, fmt.Errorf("%w: wrong issuer", ErrCredentialInvalid)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject or tenant", ErrCredentialInvalid)
	}

	return Identity{UserID: claims.Subject, TenantID: claims.TenantID}, nil
}

// IssueToken signs a token for the given identity. Production tokens come
// from the identity service; this is used by tooling and tests.
func (a *TokenAuthenticator) IssueToken(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: identity.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
