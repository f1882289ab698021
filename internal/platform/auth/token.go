package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs access tokens for locally authenticated users. It is only
// used when an HMAC secret is configured; deployments fronted by an external
// identity provider never issue tokens themselves.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

const defaultTokenTTL = 12 * time.Hour

func NewTokenIssuer(secret []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: defaultTokenTTL}
}

// Issue signs a token for the given user, tenant and role.
func (i *TokenIssuer) Issue(userID, tenantID string, role Role) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("token issuer has no signing key")
	}

	now := time.Now().UTC()
	expires := now.Add(i.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TenantID: tenantID,
		Role:     string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}
