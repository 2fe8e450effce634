// Package token signs and verifies short-lived identity tokens (HS256 JWTs).
package token

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/amiskov/appgate/pkg/apperr"
)

// Claim is the identity carried by a token. It is valid strictly before
// ExpiresAt.
type Claim struct {
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now, tests use it to pin issue and verify times.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

var errEmptySecret = errors.New("token: empty secret")

func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return ``, apperr.New(apperr.Internal, "token subject is empty")
	}
	if ttl <= 0 {
		return ``, apperr.New(apperr.Internal, "token ttl must be positive")
	}

	// Claims carry whole seconds: iat is floored and exp rounded up, so the
	// token verifies for at least ttl from now.
	now := c.now()
	data := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
		ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, data).SignedString(c.secret)
	if err != nil {
		return ``, apperr.Wrap(apperr.Internal, "token signing failed", err)
	}
	return token, nil
}

// Verify checks the signature before the validity window, so a forged token
// is reported as InvalidSignature even when it is also expired.
func (c *Codec) Verify(tokenString string) (*Claim, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &jwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, apperr.New(apperr.Malformed, "token claims incomplete")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, apperr.New(apperr.Malformed, "token validity window is empty")
	}

	return &Claim{
		ID:        claims.ID,
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	if f := t.Truncate(time.Second); f.Before(t) {
		return f.Add(time.Second)
	}
	return t
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperr.Wrap(apperr.Malformed, "token malformed", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperr.Wrap(apperr.InvalidSignature, "token signature invalid", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(apperr.Expired, "token expired", err)
	default:
		return apperr.Wrap(apperr.Malformed, "token rejected", err)
	}
}

// Hash is an MD5 hex digest for fingerprinting (asset versions, cache keys).
// It is not a security primitive.
func Hash(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
