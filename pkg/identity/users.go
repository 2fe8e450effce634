package identity

import (
	"context"
	"time"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/session"
	"github.com/amiskov/appgate/pkg/token"
)

type UserRepo interface {
	IsActive(ctx context.Context, id string) (bool, error)
}

// Users admits a claim only while its subject is an active user.
func Users(repo UserRepo, timeout time.Duration) Policy {
	return PolicyFunc(func(ctx context.Context, claim *token.Claim, _ *session.Record) (*Identity, error) {
		repoCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		active, err := repo.IsActive(repoCtx, claim.Subject)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "user lookup failed", err)
		}
		if !active {
			return nil, apperr.New(apperr.Revoked, "user is not active")
		}
		return FromClaim(claim), nil
	})
}
