// Package captcha issues the sign-up challenge and keeps its answer in the
// visitor's session.
package captcha

import (
	"context"
	"net/http"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/common"
	"github.com/amiskov/appgate/pkg/session"
	"github.com/amiskov/appgate/pkg/user"
)

const length = 5

type iSessions interface {
	Save(ctx context.Context, rec *session.Record) error
}

type Handler struct {
	sessions iSessions
}

func NewHandler(sm iSessions) *Handler {
	return &Handler{sessions: sm}
}

// Get stores a fresh challenge in the session and returns it for the client
// to render. Any previous challenge is replaced.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return apperr.New(apperr.Internal, "no session attached")
	}

	code := common.RandStringRunes(length)
	sess.Set(user.CaptchaKey, code)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		return apperr.Wrap(apperr.Internal, "can't save captcha", err)
	}

	common.WriteRespJSON(w, struct {
		Captcha string `json:"captcha"`
	}{Captcha: code})
	return nil
}
