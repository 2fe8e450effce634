package identity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/session"
	"github.com/amiskov/appgate/pkg/token"
)

// Revocations is a Redis backed deny list of token ids and subjects. Entries
// expire on their own once the tokens they cover could no longer verify.
type Revocations struct {
	rdb      redis.UniversalClient
	prefix   string
	tokenTTL time.Duration
	now      func() time.Time
}

func NewRevocations(rdb redis.UniversalClient, prefix string, tokenTTL time.Duration) *Revocations {
	return &Revocations{
		rdb:      rdb,
		prefix:   prefix,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (rv *Revocations) tokenKey(id string) string   { return rv.prefix + "jti:" + id }
func (rv *Revocations) subjectKey(s string) string { return rv.prefix + "sub:" + s }

// RevokeToken denies one token until it expires.
func (rv *Revocations) RevokeToken(ctx context.Context, id *Identity) error {
	ttl := time.Unix(id.ExpiresAt, 0).Sub(rv.now())
	if ttl <= 0 {
		return nil
	}
	if err := rv.rdb.Set(ctx, rv.tokenKey(id.TokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("identity/revocation: revoke token: %w", err)
	}
	return nil
}

// RevokeSubject denies every token of subject issued up to now.
func (rv *Revocations) RevokeSubject(ctx context.Context, subject string) error {
	if err := rv.rdb.Set(ctx, rv.subjectKey(subject), rv.now().Unix(), rv.tokenTTL).Err(); err != nil {
		return fmt.Errorf("identity/revocation: revoke subject: %w", err)
	}
	return nil
}

func (rv *Revocations) Resolve(ctx context.Context, claim *token.Claim, _ *session.Record) (*Identity, error) {
	tokenKey, subjectKey := rv.tokenKey(claim.ID), rv.subjectKey(claim.Subject)
	vals, err := rv.rdb.MGet(ctx, tokenKey, subjectKey).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "revocation lookup failed", err)
	}
	if vals[0] != nil {
		return nil, apperr.New(apperr.Revoked, "token revoked")
	}
	if vals[1] != nil {
		raw, _ := vals[1].(string)
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || claim.IssuedAt.Unix() <= since {
			return nil, apperr.New(apperr.Revoked, "subject revoked")
		}
	}
	return FromClaim(claim), nil
}
