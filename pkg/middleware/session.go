package middleware

import (
	"net/http"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/session"
)

// Sessions attaches a session record to every request. Clients without a
// live session get a new one and a cookie, signed in or not.
func Sessions(m *session.Manager, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, _, err := m.Load(r.Context(), r)
			if err != nil {
				onError(w, r, apperr.Wrap(apperr.Internal, "session unavailable", err))
				return
			}
			if err := m.Commit(r.Context(), w, rec); err != nil {
				onError(w, r, apperr.Wrap(apperr.Internal, "session unavailable", err))
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithRecord(r.Context(), rec)))
		})
	}
}
