package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/amiskov/appgate/pkg/identity"
	"github.com/amiskov/appgate/pkg/logger"
)

type IRepo interface {
	UserExists(ctx context.Context, login string) (bool, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	Add(ctx context.Context, u *User) (string, error)
}

type ITokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

type IRevoker interface {
	RevokeToken(ctx context.Context, id *identity.Identity) error
	RevokeSubject(ctx context.Context, subject string) error
}

type service struct {
	repo     IRepo
	issuer   ITokenIssuer
	revoker  IRevoker
	tokenTTL time.Duration
}

var errBadCredentials = errors.New("login or password is wrong")

func NewService(r IRepo, issuer ITokenIssuer, revoker IRevoker, tokenTTL time.Duration) *service {
	return &service{
		repo:     r,
		issuer:   issuer,
		revoker:  revoker,
		tokenTTL: tokenTTL,
	}
}

func (s *service) RegUser(ctx context.Context, login, password string) (userID, token string, err error) {
	userExists, err := s.repo.UserExists(ctx, login)
	if err != nil {
		return ``, ``, err
	}
	if userExists {
		return ``, ``, fmt.Errorf("can't add `%s`, %w", login, errUserAlreadyExists)
	}

	pass, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return ``, ``, fmt.Errorf("user: hash password: %w", err)
	}
	userID, err = s.repo.Add(ctx, &User{Login: login, Password: pass})
	if err != nil {
		logger.Log(ctx).Errorf("user: can't add user to DB: %v", err)
		return ``, ``, err
	}

	token, err = s.issuer.Issue(userID, s.tokenTTL)
	if err != nil {
		return ``, ``, err
	}
	return userID, token, nil
}

func (s *service) LoginUser(ctx context.Context, login, password string) (userID, token string, err error) {
	usr, err := s.repo.GetByLogin(ctx, login)
	if errors.Is(err, errUserNotFound) {
		return ``, ``, fmt.Errorf("login `%s`: %w", login, errBadCredentials)
	}
	if err != nil {
		return ``, ``, err
	}
	if !usr.Active {
		return ``, ``, fmt.Errorf("login `%s` is inactive: %w", login, errBadCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(usr.Password, []byte(password)); err != nil {
		return ``, ``, fmt.Errorf("login `%s`: %w", login, errBadCredentials)
	}

	token, err = s.issuer.Issue(usr.ID, s.tokenTTL)
	if err != nil {
		return ``, ``, err
	}
	return usr.ID, token, nil
}

func (s *service) LogOutUser(ctx context.Context, id *identity.Identity, everywhere bool) error {
	if s.revoker == nil {
		return nil
	}
	if err := s.revoker.RevokeToken(ctx, id); err != nil {
		return err
	}
	if everywhere {
		return s.revoker.RevokeSubject(ctx, id.Subject)
	}
	return nil
}
