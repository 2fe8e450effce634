package middleware

import (
	"context"
	"net/http"

	"github.com/amiskov/appgate/pkg/route"
)

type classKey struct{}

type Classifier interface {
	Classify(path string) route.Class
}

// Gate routes each request by its path class: the shell handler for
// everything outside the API, next for public endpoints and guard(next) for
// the rest.
func Gate(c Classifier, shell http.Handler, guard func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := guard(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := c.Classify(r.URL.Path)
			r = r.WithContext(context.WithValue(r.Context(), classKey{}, class))

			switch class {
			case route.Shell:
				shell.ServeHTTP(w, r)
			case route.PublicAPI:
				next.ServeHTTP(w, r)
			default:
				protected.ServeHTTP(w, r)
			}
		})
	}
}

func ClassFrom(ctx context.Context) (route.Class, bool) {
	c, ok := ctx.Value(classKey{}).(route.Class)
	return c, ok
}
