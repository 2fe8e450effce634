package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiskov/appgate/pkg/identity"
	"github.com/amiskov/appgate/pkg/token"
)

type fakeRevoker struct {
	revoked  []string
	subjects []string
}

func (f *fakeRevoker) RevokeToken(_ context.Context, id *identity.Identity) error {
	f.revoked = append(f.revoked, id.TokenID)
	return nil
}

func (f *fakeRevoker) RevokeSubject(_ context.Context, subject string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func newTestService(t *testing.T) (*service, *MemRepo, *token.Codec, *fakeRevoker) {
	t.Helper()
	codec, err := token.NewCodec("secret")
	require.NoError(t, err)
	repo := NewMemRepo()
	rv := &fakeRevoker{}
	return NewService(repo, codec, rv, time.Hour), repo, codec, rv
}

func TestRegUserIssuesTokenForNewUser(t *testing.T) {
	s, repo, codec, _ := newTestService(t)
	ctx := context.Background()

	id, tok, err := s.RegUser(ctx, "ann", "pa55")
	require.NoError(t, err)

	claim, err := codec.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id, claim.Subject)

	u, err := repo.GetByLogin(ctx, "ann")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("pa55"), u.Password)

	_, _, err = s.RegUser(ctx, "ann", "other")
	assert.ErrorIs(t, err, errUserAlreadyExists)
}

func TestLoginUser(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	ctx := context.Background()
	id, _, err := s.RegUser(ctx, "ann", "pa55")
	require.NoError(t, err)

	gotID, tok, err := s.LoginUser(ctx, "ann", "pa55")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.NotEmpty(t, tok)

	_, _, err = s.LoginUser(ctx, "ann", "wrong")
	assert.ErrorIs(t, err, errBadCredentials)
	_, _, err = s.LoginUser(ctx, "bob", "pa55")
	assert.ErrorIs(t, err, errBadCredentials)

	repo.Deactivate("ann")
	_, _, err = s.LoginUser(ctx, "ann", "pa55")
	assert.ErrorIs(t, err, errBadCredentials)
}

func TestLogOutRevokesToken(t *testing.T) {
	s, _, _, rv := newTestService(t)
	require.NoError(t, s.LogOutUser(context.Background(), &identity.Identity{Subject: "1", TokenID: "jti"}, false))
	assert.Equal(t, []string{"jti"}, rv.revoked)
	assert.Empty(t, rv.subjects)
}

func TestLogOutEverywhereRevokesSubject(t *testing.T) {
	s, _, _, rv := newTestService(t)
	require.NoError(t, s.LogOutUser(context.Background(), &identity.Identity{Subject: "1", TokenID: "jti"}, true))
	assert.Equal(t, []string{"jti"}, rv.revoked)
	assert.Equal(t, []string{"1"}, rv.subjects)
}

func TestMemRepoIsActive(t *testing.T) {
	repo := NewMemRepo()
	ctx := context.Background()
	id, err := repo.Add(ctx, &User{Login: "ann"})
	require.NoError(t, err)

	active, err := repo.IsActive(ctx, id)
	require.NoError(t, err)
	assert.True(t, active)

	repo.Deactivate("ann")
	active, err = repo.IsActive(ctx, id)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = repo.IsActive(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, active)
}
