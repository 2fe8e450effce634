package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/identity"
	"github.com/amiskov/appgate/pkg/logger"
	"github.com/amiskov/appgate/pkg/session"
	"github.com/amiskov/appgate/pkg/token"
)

type (
	// ErrorHandler writes the response for a failed request.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

	Verifier interface {
		Verify(token string) (*token.Claim, error)
	}

	identityKey struct{}
)

// AuthState is how far a request got through the guard.
type AuthState int

const (
	Start AuthState = iota
	TokenExtracted
	TokenVerified
	IdentityResolved
	Admitted
)

func (s AuthState) String() string {
	switch s {
	case Start:
		return "start"
	case TokenExtracted:
		return "token-extracted"
	case TokenVerified:
		return "token-verified"
	case IdentityResolved:
		return "identity-resolved"
	case Admitted:
		return "admitted"
	}
	return "unknown"
}

// AuthConfig is everything the guard reads. The guard itself keeps no state
// between requests.
type AuthConfig struct {
	Verifier    Verifier
	Policy      identity.Policy
	TokenCookie string
	OnError     ErrorHandler
}

// Authenticate walks a request through the guard states. On failure it
// returns the state it stopped in together with the rejection.
func Authenticate(r *http.Request, cfg AuthConfig) (*identity.Identity, AuthState, error) {
	raw, ok := extractToken(r, cfg.TokenCookie)
	if !ok {
		return nil, Start, apperr.New(apperr.Unauthenticated, "token not found")
	}

	claim, err := cfg.Verifier.Verify(raw)
	if err != nil {
		return nil, TokenExtracted, err
	}

	sess, _ := session.FromContext(r.Context())
	id, err := cfg.Policy.Resolve(r.Context(), claim, sess)
	if err != nil {
		return nil, TokenVerified, err
	}
	return id, Admitted, nil
}

// Guard admits requests carrying a valid token and rejects the rest before
// next runs. Rejections are final, the client has to sign in again.
func Guard(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Policy == nil {
		cfg.Policy = identity.Trust
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, state, err := Authenticate(r, cfg)
			if err != nil {
				logger.Log(r.Context()).Infof("auth: rejected after %s: %v", state, err)
				cfg.OnError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFrom(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*identity.Identity)
	return id, ok && id != nil
}

func extractToken(r *http.Request, cookieName string) (string, bool) {
	const bearer = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearer) {
		if tok := strings.TrimSpace(h[len(bearer):]); tok != "" {
			return tok, true
		}
	}
	if cookieName == "" {
		return ``, false
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return ``, false
}
