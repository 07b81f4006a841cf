package auth

import (
	"os"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitloop/habitloop/models"
)

var testPrincipal = models.Principal{
	ID:    "64a1f0c2b3d4e5f601234567",
	Email: "ada@example.com",
	Role:  "user",
}

// TestMain wires the package globals the way main does at startup. Token
// issuance and verification need only the signing key.
func TestMain(m *testing.M) {
	InitAuth(nil, "test-signing-key", nil)
	os.Exit(m.Run())
}

// signTestToken builds a token with arbitrary claims using the package's
// signing key, for exercising verification edge cases.
func signTestToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	token, err := IssueToken(testPrincipal)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, *principal)
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	for _, token := range []string{"", "garbage", "a.b.c", "Bearer abc"} {
		principal, err := VerifyToken(token)
		assert.Nil(t, principal)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	token := signTestToken(t, "some-other-key", jwt.MapClaims{
		"id":  testPrincipal.ID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	principal, err := VerifyToken(token)
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token := signTestToken(t, "test-signing-key", jwt.MapClaims{
		"id":    testPrincipal.ID,
		"email": testPrincipal.Email,
		"role":  testPrincipal.Role,
		"iat":   time.Now().Add(-25 * time.Hour).Unix(),
		"exp":   time.Now().Add(-time.Hour).Unix(),
	})

	principal, err := VerifyToken(token)
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  testPrincipal.ID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	principal, err := VerifyToken(unsigned)
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingIdentity(t *testing.T) {
	token := signTestToken(t, "test-signing-key", jwt.MapClaims{
		"email": testPrincipal.Email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	principal, err := VerifyToken(token)
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
