package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid  = errors.New("security: invalid token")
	ErrSecretMissing = errors.New("security: jwt secret not configured")
)

// Claims are the bearer token claims. Subject carries the user id.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 tokens minted by the identity provider.
type TokenVerifier struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
}

func NewTokenVerifier(secret, issuer string) TokenVerifier {
	return TokenVerifier{Secret: []byte(secret), Issuer: strings.TrimSpace(issuer), Leeway: 30 * time.Second}
}

// Verify parses token and returns the user id it was issued for.
func (v TokenVerifier) Verify(token string) (string, error) {
	if len(v.Secret) == 0 {
		return "", ErrSecretMissing
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.Leeway),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrTokenInvalid
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return subject, nil
}

// TokenIssuer mints tokens; used by dmctl and tests standing in for the identity provider.
type TokenIssuer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func (i TokenIssuer) Issue(userID, username string, now time.Time) (string, error) {
	if len(i.Secret) == 0 {
		return "", ErrSecretMissing
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
}
