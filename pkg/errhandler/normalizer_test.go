package errhandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiskov/appgate/pkg/apperr"
	"github.com/amiskov/appgate/pkg/middleware"
	"github.com/amiskov/appgate/pkg/route"
	"github.com/amiskov/appgate/pkg/view"
)

func isAPI(path string) bool { return strings.HasPrefix(path, "/api") }

func newTestNormalizer(t *testing.T, reveal bool) *Normalizer {
	t.Helper()
	v, err := view.New()
	require.NoError(t, err)
	return New(reveal, isAPI, v)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNotFoundProductionHidesDetail(t *testing.T) {
	n := newTestNormalizer(t, false)
	rec := httptest.NewRecorder()
	n.NotFound().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(404), body["status"])
	assert.Equal(t, "Not Found", body["message"])
	assert.NotContains(t, body, "detail")
}

func TestNotFoundDevelopmentRevealsDetail(t *testing.T) {
	n := newTestNormalizer(t, true)
	rec := httptest.NewRecorder()
	n.NotFound().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	require.Contains(t, body, "detail")
	detail := body["detail"].(map[string]any)
	assert.Equal(t, "not_found", detail["kind"])
	assert.NotContains(t, detail, "stack")
}

func TestInternalDetailCarriesStack(t *testing.T) {
	n := newTestNormalizer(t, true)
	p := n.Build(apperr.Wrap(apperr.Internal, "db down", errors.New("dial tcp: refused")))
	require.NotNil(t, p.Detail)
	assert.NotEmpty(t, p.Detail.Stack)
}

type classifyAs route.Class

func (c classifyAs) Classify(string) route.Class { return route.Class(c) }

func TestFormatFollowsGateClass(t *testing.T) {
	n := newTestNormalizer(t, false)
	pass := func(next http.Handler) http.Handler { return next }

	// classified as shell: the error page, whatever the path looks like
	h := middleware.Gate(classifyAs(route.Shell), n.NotFound(), pass)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/odd", nil))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	// classified as API: JSON even off the prefix
	h = middleware.Gate(classifyAs(route.PublicAPI), http.NotFoundHandler(), pass)(n.NotFound())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(http.StatusNotFound), decode(t, rec)["status"])
}

func TestShellRequestsGetErrorPage(t *testing.T) {
	n := newTestNormalizer(t, false)
	rec := httptest.NewRecorder()
	n.Handle(rec, httptest.NewRequest(http.MethodGet, "/account", nil), apperr.New(apperr.NotFound, "Not Found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h1>Not Found</h1>")
	assert.NotContains(t, rec.Body.String(), "<pre>")
}

func TestAuthFailuresShareMessage(t *testing.T) {
	n := newTestNormalizer(t, false)
	for _, kind := range []apperr.Kind{apperr.Unauthenticated, apperr.InvalidSignature, apperr.Expired, apperr.Malformed, apperr.Revoked} {
		p := n.Build(apperr.New(kind, "something specific"))
		assert.Equal(t, http.StatusUnauthorized, p.Status)
		assert.Equal(t, authRequired, p.Message)
		assert.Nil(t, p.Detail)
	}
}

func TestPlainErrorsAreInternal(t *testing.T) {
	n := newTestNormalizer(t, false)
	p := n.Build(fmt.Errorf("db: %w", errors.New("connection reset")))
	assert.Equal(t, http.StatusInternalServerError, p.Status)
	assert.Equal(t, "Internal Server Error", p.Message)
	assert.Nil(t, p.Detail)

	p = newTestNormalizer(t, true).Build(fmt.Errorf("db: %w", errors.New("connection reset")))
	require.NotNil(t, p.Detail)
	assert.Equal(t, []string{"db: connection reset", "connection reset"}, p.Detail.Chain)
}

func TestMethodNotAllowed(t *testing.T) {
	n := newTestNormalizer(t, false)
	rec := httptest.NewRecorder()
	n.MethodNotAllowed().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/captcha", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecover(t *testing.T) {
	n := newTestNormalizer(t, false)
	h := n.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestWrap(t *testing.T) {
	n := newTestNormalizer(t, false)
	h := n.Wrap(func(http.ResponseWriter, *http.Request) error {
		return apperr.New(apperr.Conflict, "already exists")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/sign/up", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already exists", decode(t, rec)["message"])
}
