package session

import (
	"context"
	"errors"
	"time"
)

// Record is the server-side state of one client, addressed by the id kept in
// the session cookie. Anonymous visitors get one too.
type Record struct {
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	LastAccess time.Time      `json:"last_access"`
	MaxAge     time.Duration  `json:"max_age"`
}

// Expired reports whether the record outlived its idle window at now.
func (r *Record) Expired(now time.Time) bool {
	return now.Sub(r.LastAccess) > r.MaxAge
}

func (r *Record) Get(key string) (any, bool) {
	v, ok := r.Data[key]
	return v, ok
}

func (r *Record) GetString(key string) string {
	s, _ := r.Data[key].(string)
	return s
}

func (r *Record) Set(key string, v any) {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = v
}

func (r *Record) Delete(key string) {
	delete(r.Data, key)
}

// Store persists records. Implementations must drop a record once it has not
// been accessed for longer than its MaxAge.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Touch(ctx context.Context, rec *Record) error
	Destroy(ctx context.Context, id string) error
}

type ctxKey struct{}

var ErrNotFound = errors.New("session: no session found")

func WithRecord(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, ctxKey{}, rec)
}

func FromContext(ctx context.Context) (*Record, bool) {
	rec, ok := ctx.Value(ctxKey{}).(*Record)
	return rec, ok && rec != nil
}
