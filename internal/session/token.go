package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec mints and verifies the correlation token carried in each
// turn's action URL. Turns are stateless at the transport level; this
// token is the only continuity between round-trips.
//
// Verification failures are not errors at the call site: the handler
// treats an unusable token the same as an unknown key and starts fresh.

type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

var ErrBadToken = errors.New("session: invalid token")

func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("session: token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}, nil
}

type tokenClaims struct {
	CallerID string `json:"cid,omitempty"`
	jwt.RegisteredClaims
}

// Mint issues a compact HS256 token bound to the session key and caller.
func (c *TokenCodec) Mint(s *Session, now time.Time) (string, error) {
	claims := tokenClaims{
		CallerID: s.CallerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse returns the session key and caller for a valid token.
func (c *TokenCodec) Parse(token string, now time.Time) (key, callerID string, err error) {
	var claims tokenClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", "", ErrBadToken
	}
	return claims.Subject, claims.CallerID, nil
}
