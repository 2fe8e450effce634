package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

const schema = `CREATE TABLE IF NOT EXISTS users (
	id       SERIAL PRIMARY KEY,
	login    TEXT UNIQUE NOT NULL,
	password BYTEA NOT NULL,
	active   BOOLEAN NOT NULL DEFAULT TRUE
)`

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("user/repo: create users table: %w", err)
	}
	return nil
}

func (r *UserRepo) Add(ctx context.Context, u *User) (string, error) {
	userID := 0
	err := r.db.QueryRowContext(ctx, "INSERT INTO users(login, password) VALUES($1, $2) RETURNING id",
		u.Login, u.Password).Scan(&userID)
	if err != nil {
		return ``, fmt.Errorf("user/repo: failed insert user, %w", err)
	}
	return strconv.Itoa(userID), nil
}

func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, login, password, active FROM users WHERE login=$1", login)
	u := new(User)
	err := row.Scan(&u.ID, &u.Login, &u.Password, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user/repo: row scan failed: %w", err)
	}
	return u, nil
}

func (r *UserRepo) UserExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE login=$1)", login).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user/repo: exists check failed: %w", err)
	}
	return exists, nil
}

// IsActive reports false for unknown ids.
func (r *UserRepo) IsActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, "SELECT active FROM users WHERE id=$1", id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user/repo: could not scan row: %w", err)
	}
	return active, nil
}

// MemRepo keeps users in memory. It backs development runs without
// Postgres and the handler tests.
type MemRepo struct {
	mu     sync.RWMutex
	users  map[string]*User
	nextID int
}

func NewMemRepo() *MemRepo {
	return &MemRepo{users: make(map[string]*User)}
}

func (r *MemRepo) Add(_ context.Context, u *User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Login]; ok {
		return ``, errUserAlreadyExists
	}
	r.nextID++
	stored := *u
	stored.ID = strconv.Itoa(r.nextID)
	stored.Active = true
	r.users[u.Login] = &stored
	return stored.ID, nil
}

func (r *MemRepo) GetByLogin(_ context.Context, login string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[login]
	if !ok {
		return nil, errUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemRepo) UserExists(_ context.Context, login string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[login]
	return ok, nil
}

func (r *MemRepo) IsActive(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id {
			return u.Active, nil
		}
	}
	return false, nil
}

// Deactivate marks the user inactive, the user identity policy then rejects
// tokens already issued to them.
func (r *MemRepo) Deactivate(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[login]; ok {
		u.Active = false
	}
}
