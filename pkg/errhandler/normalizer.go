// Package errhandler is the single place that turns failures into HTTP
// responses. API requests get a JSON body, everything else the error page.
package errhandler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/common"
	"github.com/amiskov/appgate/pkg/logger"
	"github.com/amiskov/appgate/pkg/middleware"
	"github.com/amiskov/appgate/pkg/route"
	"github.com/amiskov/appgate/pkg/view"
)

const authRequired = "authorization required"

type Payload struct {
	Status  int     `json:"status"`
	Message string  `json:"message"`
	Detail  *Detail `json:"detail,omitempty"`
}

// Detail is only ever sent outside production.
type Detail struct {
	Kind  string   `json:"kind"`
	Error string   `json:"error"`
	Chain []string `json:"chain,omitempty"`
	Stack string   `json:"stack,omitempty"`
}

type Normalizer struct {
	revealDetail bool
	isAPI        func(path string) bool
	views        *view.Views
}

func New(revealDetail bool, isAPI func(path string) bool, views *view.Views) *Normalizer {
	return &Normalizer{
		revealDetail: revealDetail,
		isAPI:        isAPI,
		views:        views,
	}
}

// Build maps err to the payload the client will see.
func (n *Normalizer) Build(err error) Payload {
	e, ok := apperr.As(err)
	if !ok {
		e = &apperr.Error{Kind: apperr.Internal, Message: http.StatusText(http.StatusInternalServerError), Err: err}
	}

	p := Payload{Status: e.Status(), Message: e.Message}
	if e.Kind.Auth() {
		p.Message = authRequired
	}
	if p.Message == "" {
		p.Message = http.StatusText(p.Status)
	}
	if n.revealDetail {
		p.Detail = &Detail{
			Kind:  e.Kind.String(),
			Error: err.Error(),
			Chain: chain(err),
			Stack: string(e.Stack),
		}
	}
	return p
}

func (n *Normalizer) Handle(w http.ResponseWriter, r *http.Request, err error) {
	p := n.Build(err)

	log := logger.Log(r.Context())
	if p.Status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	} else {
		log.Infof("request rejected: %v", err)
	}

	if n.wantsJSON(r) || n.views == nil {
		common.WriteJSON(w, p, p.Status)
		return
	}
	if renderErr := n.views.Render(w, "error", p.Status, p); renderErr != nil {
		log.Errorf("can't render error page: %v", renderErr)
		common.WriteJSON(w, p, p.Status)
	}
}

// wantsJSON uses the class the gate recorded, failures raised before
// classification fall back to the path check.
func (n *Normalizer) wantsJSON(r *http.Request) bool {
	if class, ok := middleware.ClassFrom(r.Context()); ok {
		return class != route.Shell
	}
	return n.isAPI(r.URL.Path)
}

// NotFound turns a request no route matched into a NotFound failure.
func (n *Normalizer) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Handle(w, r, apperr.New(apperr.NotFound, "Not Found"))
	})
}

func (n *Normalizer) MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := fmt.Sprintf("method %s not allowed", r.Method)
		n.Handle(w, r, apperr.New(apperr.MethodNotAllowed, msg))
	})
}

// Recover normalizes panics raised further down the chain.
func (n *Normalizer) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				n.Handle(w, r, apperr.Wrap(apperr.Internal, "Internal Server Error", fmt.Errorf("panic: %v", v)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// HandlerFunc is an http.HandlerFunc that reports failures instead of
// writing them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Wrap adapts h, sending any returned error to the normalizer.
func (n *Normalizer) Wrap(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			n.Handle(w, r, err)
		}
	})
}

func chain(err error) []string {
	var out []string
	for ; err != nil; err = errors.Unwrap(err) {
		out = append(out, err.Error())
	}
	return out
}
