package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_ValidToken(t *testing.T) {
	a := NewTokenAuthenticator("secret", "relay")

	token, err := a.IssueToken(Identity{UserID: "u1", TenantID: "t1"}, time.Minute)
	require.NoError(t, err)

	identity, err := a.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", TenantID: "t1"}, identity)
}

func TestAuthenticate_MissingCredential(t *testing.T) {
	a := NewTokenAuthenticator("secret", "relay")

	_, err := a.Authenticate("")

	assert.ErrorIs(t, err, ErrCredentialMissing)
	assert.Equal(t, "CredentialMissing", FailureCode(err))
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	a := NewTokenAuthenticator("secret", "relay")

	token, err := a.IssueToken(Identity{UserID: "u1", TenantID: "t1"}, -time.Minute)
	require.NoError(t, err)

	_, err = a.Authenticate(token)
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.Equal(t, "CredentialExpired", FailureCode(err))
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	issuer := NewTokenAuthenticator("secret-a", "relay")
	verifier := NewTokenAuthenticator("secret-b", "relay")

	token, err := issuer.IssueToken(Identity{UserID: "u1", TenantID: "t1"}, time.Minute)
	require.NoError(t, err)

	_, err = verifier.Authenticate(token)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
	assert.Equal(t, "CredentialInvalid", FailureCode(err))
}

func TestAuthenticate_WrongIssuer(t *testing.T) {
	issuer := NewTokenAuthenticator("secret", "other-service")
	verifier := NewTokenAuthenticator("secret", "relay")

	token, err := issuer.IssueToken(Identity{UserID: "u1", TenantID: "t1"}, time.Minute)
	require.NoError(t, err)

	_, err = verifier.Authenticate(token)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	a := NewTokenAuthenticator("secret", "relay")

	_, err := a.Authenticate("not.a.token")
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestAuthenticate_MissingTenantClaim(t *testing.T) {
	a := NewTokenAuthenticator("secret", "relay")

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "relay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = a.Authenticate(token)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestAuthenticate_RejectsUnsignedToken(t *testing.T) {
	a := NewTokenAuthenticator("secret", "relay")

	claims := Claims{
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "relay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = a.Authenticate(token)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}
