package user

import "errors"

type User struct {
	ID       string
	Login    string
	Password []byte
	Active   bool
}

var (
	errUserAlreadyExists = errors.New("user already exists")
	errUserNotFound      = errors.New("user not found")
)
