package user

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/common"
	"github.com/amiskov/appgate/pkg/identity"
	"github.com/amiskov/appgate/pkg/middleware"
	"github.com/amiskov/appgate/pkg/session"
)

// CaptchaKey is the session data key holding the pending captcha answer.
const CaptchaKey = "captcha"

type iService interface {
	RegUser(ctx context.Context, login, pass string) (userID, token string, err error)
	LoginUser(ctx context.Context, login, password string) (userID, token string, err error)
	LogOutUser(ctx context.Context, id *identity.Identity, everywhere bool) error
}

type iSessions interface {
	Save(ctx context.Context, rec *session.Record) error
	Renew(ctx context.Context, w http.ResponseWriter, rec *session.Record) (*session.Record, error)
	Destroy(ctx context.Context, w http.ResponseWriter, rec *session.Record) error
}

type Handler struct {
	service     iService
	sessions    iSessions
	tokenCookie string
	tokenTTL    time.Duration
}

func NewHandler(s iService, sm iSessions, tokenCookie string, tokenTTL time.Duration) *Handler {
	return &Handler{
		service:     s,
		sessions:    sm,
		tokenCookie: tokenCookie,
		tokenTTL:    tokenTTL,
	}
}

type httpUser struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Captcha  string `json:"captcha"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (uh *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	u, err := userFromRequest(r)
	if err != nil {
		return err
	}

	sess, _ := session.FromContext(r.Context())
	if err := checkCaptcha(sess, u.Captcha); err != nil {
		if sess != nil {
			// the answer is single use, even when wrong
			_ = uh.sessions.Save(r.Context(), sess)
		}
		return err
	}

	userID, token, err := uh.service.RegUser(r.Context(), u.Login, u.Password)
	if errors.Is(err, errUserAlreadyExists) {
		return apperr.Wrap(apperr.Conflict, `user "`+u.Login+`" already exists`, err)
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "can't add user", err)
	}
	return uh.signedIn(w, r, sess, userID, token)
}

func (uh *Handler) LogIn(w http.ResponseWriter, r *http.Request) error {
	u, err := userFromRequest(r)
	if err != nil {
		return err
	}

	userID, token, err := uh.service.LoginUser(r.Context(), u.Login, u.Password)
	if errors.Is(err, errBadCredentials) {
		return apperr.Wrap(apperr.Unauthenticated, "user authentication failed", err)
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "user authentication failed", err)
	}

	sess, _ := session.FromContext(r.Context())
	return uh.signedIn(w, r, sess, userID, token)
}

// LogOut revokes the presented token. With ?all=true every token of the user
// issued so far is revoked as well.
func (uh *Handler) LogOut(w http.ResponseWriter, r *http.Request) error {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return apperr.New(apperr.Unauthenticated, "authorization required")
	}
	everywhere, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	if err := uh.service.LogOutUser(r.Context(), id, everywhere); err != nil {
		return apperr.Wrap(apperr.Internal, "user logout failed", err)
	}
	if sess, ok := session.FromContext(r.Context()); ok {
		if err := uh.sessions.Destroy(r.Context(), w, sess); err != nil {
			return apperr.Wrap(apperr.Internal, "user logout failed", err)
		}
	}

	http.SetCookie(w, &http.Cookie{Name: uh.tokenCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	common.WriteMsg(w, "signed out", http.StatusOK)
	return nil
}

func (uh *Handler) Me(w http.ResponseWriter, r *http.Request) error {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return apperr.New(apperr.Unauthenticated, "authorization required")
	}
	common.WriteRespJSON(w, struct {
		ID        string `json:"id"`
		ExpiresAt int64  `json:"expires_at"`
	}{
		ID:        id.Subject,
		ExpiresAt: id.ExpiresAt,
	})
	return nil
}

// signedIn binds the user to a freshly rotated session and hands the token
// out in both carriers the guard accepts.
func (uh *Handler) signedIn(w http.ResponseWriter, r *http.Request, sess *session.Record, userID, token string) error {
	if sess != nil {
		sess.Set(identity.SessionUserKey, userID)
		if _, err := uh.sessions.Renew(r.Context(), w, sess); err != nil {
			return apperr.Wrap(apperr.Internal, "can't save session", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     uh.tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int((uh.tokenTTL + time.Second - 1) / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Authorization", `Bearer `+token)
	common.WriteRespJSON(w, tokenResponse{Token: token})
	return nil
}

func checkCaptcha(sess *session.Record, answer string) error {
	if sess == nil {
		return apperr.New(apperr.BadRequest, "captcha required")
	}
	want := sess.GetString(CaptchaKey)
	sess.Delete(CaptchaKey)
	if want == "" || answer != want {
		return apperr.New(apperr.BadRequest, "captcha mismatch")
	}
	return nil
}

func userFromRequest(r *http.Request) (*httpUser, error) {
	u := new(httpUser)
	if err := common.ParseReqBody(r.Body, u); err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "bad request format", err)
	}
	if u.Login == "" || u.Password == "" {
		return nil, apperr.New(apperr.BadRequest, "login and password are required")
	}
	return u, nil
}
