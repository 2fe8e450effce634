// Package identity resolves a verified token claim into the identity admitted
// for one request. Which secondary check runs is a Policy chosen at startup.
package identity

import (
	"context"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/session"
	"github.com/amiskov/appgate/pkg/token"
)

// SessionUserKey is the session data key holding the subject signed in on
// that session.
const SessionUserKey = "uid"

type Identity struct {
	Subject   string
	TokenID   string
	ExpiresAt int64
}

func FromClaim(c *token.Claim) *Identity {
	return &Identity{
		Subject:   c.Subject,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Unix(),
	}
}

// Policy confirms that a structurally valid claim still names a live
// identity. sess may be nil when no session is attached to the request.
type Policy interface {
	Resolve(ctx context.Context, claim *token.Claim, sess *session.Record) (*Identity, error)
}

type PolicyFunc func(ctx context.Context, claim *token.Claim, sess *session.Record) (*Identity, error)

func (f PolicyFunc) Resolve(ctx context.Context, claim *token.Claim, sess *session.Record) (*Identity, error) {
	return f(ctx, claim, sess)
}

// Trust admits every verified claim.
var Trust Policy = PolicyFunc(func(_ context.Context, claim *token.Claim, _ *session.Record) (*Identity, error) {
	return FromClaim(claim), nil
})

// SessionBound admits a claim only when the request session was signed in
// as the same subject.
var SessionBound Policy = PolicyFunc(func(_ context.Context, claim *token.Claim, sess *session.Record) (*Identity, error) {
	if sess == nil || sess.GetString(SessionUserKey) != claim.Subject {
		return nil, apperr.New(apperr.Revoked, "session does not belong to token subject")
	}
	return FromClaim(claim), nil
})

// Chain runs policies in order and fails on the first rejection.
func Chain(policies ...Policy) Policy {
	return PolicyFunc(func(ctx context.Context, claim *token.Claim, sess *session.Record) (*Identity, error) {
		id := FromClaim(claim)
		for _, p := range policies {
			var err error
			if id, err = p.Resolve(ctx, claim, sess); err != nil {
				return nil, err
			}
		}
		return id, nil
	})
}
