package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// Manager ties records in a Store to a signed session cookie.
type Manager struct {
	store  Store
	cookie *securecookie.SecureCookie
	name   string
	maxAge time.Duration
}

func NewManager(store Store, secret, cookieName string, maxAge time.Duration) *Manager {
	hashKey := sha256.Sum256([]byte("session-cookie:" + secret))
	sc := securecookie.New(hashKey[:], nil).MaxAge(int(maxAge / time.Second))
	return &Manager{
		store:  store,
		cookie: sc,
		name:   cookieName,
		maxAge: maxAge,
	}
}

// Load returns the session named by the request cookie. A missing, forged or
// expired cookie yields a fresh, not yet persisted record and fresh == true.
func (m *Manager) Load(ctx context.Context, r *http.Request) (rec *Record, fresh bool, err error) {
	id, ok := m.cookieID(r)
	if ok {
		rec, err = m.store.Get(ctx, id)
		if err == nil {
			rec.MaxAge = m.maxAge
			return rec, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}
	return m.New(), true, nil
}

func (m *Manager) New() *Record {
	return &Record{
		ID:     uuid.NewString(),
		Data:   make(map[string]any),
		MaxAge: m.maxAge,
	}
}

// Commit persists rec and (re)issues its cookie so the browser window slides
// along with the store TTL. Headers must not have been written yet.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, rec *Record) error {
	if err := m.store.Touch(ctx, rec); err != nil {
		return err
	}
	encoded, err := m.cookie.Encode(m.name, rec.ID)
	if err != nil {
		return fmt.Errorf("session/manager: encode cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Renew moves rec's data under a new id and drops the old record, so an id
// handed out before sign-in stops working after it.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, rec *Record) (*Record, error) {
	next := m.New()
	for k, v := range rec.Data {
		next.Data[k] = v
	}
	if err := m.store.Destroy(ctx, rec.ID); err != nil {
		return nil, err
	}
	if err := m.Commit(ctx, w, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Save persists rec without touching the cookie.
func (m *Manager) Save(ctx context.Context, rec *Record) error {
	return m.store.Save(ctx, rec)
}

// Destroy drops rec from the store and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, rec *Record) error {
	if err := m.store.Destroy(ctx, rec.ID); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return nil
}

func (m *Manager) cookieID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return ``, false
	}
	var id string
	if err := m.cookie.Decode(m.name, c.Value, &id); err != nil {
		return ``, false
	}
	return id, id != ""
}
