package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"github.com/habitloop/habitloop/models"
)

// tokenTTL is the fixed lifetime of a session token. Expiry is the only
// lifecycle exit for a token; there is no revocation.
const tokenTTL = 24 * time.Hour

// ErrInvalidToken is returned for every verification failure: malformed input,
// signature mismatch, unexpected algorithm, missing claims, or expiry. The
// distinction is deliberately not exposed to the caller.
var ErrInvalidToken = errors.New("invalid token")

// IssueToken creates a signed JWT session token carrying the principal's
// identity and role. The token embeds its issue time and expires 24 hours
// later. Nothing is persisted.
func IssueToken(principal models.Principal) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":    principal.ID,
		"email": principal.Email,
		"role":  principal.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))

	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// VerifyToken checks the signature and expiry of a session token and returns
// the Principal encoded in its claims. Verification is pure computation; the
// result is valid for the lifetime of one request only.
func VerifyToken(tokenStr string) (*models.Principal, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if id == "" {
		return nil, ErrInvalidToken
	}

	return &models.Principal{
		ID:    id,
		Email: email,
		Role:  role,
	}, nil
}
