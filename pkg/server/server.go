// Package server assembles the gating chain in front of the API router:
// tracing and logging, panic recovery, CORS, sessions, path classification,
// the auth guard and finally the routes themselves.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amiskov/appgate/pkg/captcha"
	"github.com/amiskov/appgate/pkg/config"
	"github.com/amiskov/appgate/pkg/errhandler"
	"github.com/amiskov/appgate/pkg/identity"
	"github.com/amiskov/appgate/pkg/middleware"
	"github.com/amiskov/appgate/pkg/route"
	"github.com/amiskov/appgate/pkg/session"
	"github.com/amiskov/appgate/pkg/token"
	"github.com/amiskov/appgate/pkg/user"
	"github.com/amiskov/appgate/pkg/view"
)

// Version is stamped at build time and fingerprints shell assets.
var Version = "dev"

const userLookupTimeout = 5 * time.Second

type UserStore interface {
	user.IRepo
	identity.UserRepo
}

type Server struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	handler    http.Handler
	classifier *route.Classifier
}

func New(cfg *config.Config, log *zap.SugaredLogger, rdb redis.UniversalClient, users UserStore) (*Server, error) {
	views, err := view.New()
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec(cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	classifier := route.NewClassifier(cfg.APIPrefix, route.PublicRoutes(cfg.PublicRoutes...))
	normalizer := errhandler.New(!cfg.Production(), classifier.IsAPI, views)
	revocations := identity.NewRevocations(rdb, "appgate:revoked:", cfg.TokenTTL)
	sessions := session.NewManager(session.NewRedisStore(rdb, "appgate:sess:"), cfg.SecretKey, cfg.SessionCookie, cfg.SessionMaxAge)

	policy, err := newPolicy(cfg.IdentityPolicy, revocations, users)
	if err != nil {
		return nil, err
	}

	userHandler := user.NewHandler(
		user.NewService(users, codec, revocations, cfg.TokenTTL),
		sessions, cfg.TokenCookie, cfg.TokenTTL,
	)
	captchaHandler := captcha.NewHandler(sessions)

	r := mux.NewRouter()
	r.NotFoundHandler = normalizer.NotFound()
	r.MethodNotAllowedHandler = normalizer.MethodNotAllowed()

	api := r.PathPrefix(cfg.APIPrefix).Subrouter()
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler

	// Users
	api.Handle("/users/sign/up", normalizer.Wrap(userHandler.Register)).Methods(http.MethodPost)
	api.Handle("/users/sign/in", normalizer.Wrap(userHandler.LogIn)).Methods(http.MethodPost)
	api.Handle("/users/sign/out", normalizer.Wrap(userHandler.LogOut)).Methods(http.MethodPost)
	api.Handle("/users/me", normalizer.Wrap(userHandler.Me)).Methods(http.MethodGet)

	// Captcha
	api.Handle("/captcha", normalizer.Wrap(captchaHandler.Get)).Methods(http.MethodGet)

	guard := middleware.Guard(middleware.AuthConfig{
		Verifier:    codec,
		Policy:      policy,
		TokenCookie: cfg.TokenCookie,
		OnError:     normalizer.Handle,
	})
	shell := normalizer.Wrap(shellHandler(views, cfg.APIPrefix))

	logMiddleware := middleware.NewLoggingMiddleware(log)
	chain := []func(http.Handler) http.Handler{
		logMiddleware.SetupTracing,
		logMiddleware.SetupLogging,
		logMiddleware.AccessLog,
		normalizer.Recover,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Authorization", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.Sessions(sessions, normalizer.Handle),
		middleware.Gate(classifier, shell, guard),
	}

	var h http.Handler = r
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}

	return &Server{
		cfg:        cfg,
		log:        log,
		handler:    h,
		classifier: classifier,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.RunAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("serving at http://%s/, public endpoints: %v", s.cfg.RunAddress, s.classifier.Public())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newPolicy(name string, rv *identity.Revocations, users identity.UserRepo) (identity.Policy, error) {
	switch name {
	case "none":
		return identity.Trust, nil
	case "session":
		return identity.SessionBound, nil
	case "revocation":
		return rv, nil
	case "user":
		return identity.Users(users, userLookupTimeout), nil
	case "all":
		return identity.Chain(rv, identity.Users(users, userLookupTimeout), identity.SessionBound), nil
	}
	return nil, fmt.Errorf("server: unknown identity policy %q", name)
}

func shellHandler(views *view.Views, apiPrefix string) errhandler.HandlerFunc {
	assetVersion := token.Hash(Version)
	return func(w http.ResponseWriter, r *http.Request) error {
		return views.Render(w, "index", http.StatusOK, map[string]any{
			"Title":        "appgate",
			"APIPrefix":    apiPrefix,
			"Time":         time.Now().UnixMilli(),
			"AssetVersion": assetVersion,
		})
	}
}
