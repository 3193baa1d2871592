package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/middleware"
	"github.com/shashiranjanraj/campusmart/pkg/rbac"
	"github.com/shashiranjanraj/campusmart/pkg/reqid"
	"github.com/shashiranjanraj/campusmart/pkg/session"
)

// tokens maps a token to the uid it verifies as.
type tokens map[string]string

func (tokens) CreateAccount(context.Context, string, string) (identity.Account, error) {
	return identity.Account{}, errors.New("unused")
}
func (tokens) SignIn(context.Context, string, string) (identity.Credential, error) {
	return identity.Credential{}, errors.New("unused")
}
func (tokens) SignOut(context.Context, string) error { return nil }
func (t tokens) Verify(_ context.Context, token string) (identity.Account, error) {
	uid, ok := t[token]
	if !ok {
		return identity.Account{}, &identity.Error{Code: identity.CodeInvalidToken}
	}
	return identity.Account{UID: uid}, nil
}
func (tokens) OnAuthStateChanged(func(identity.StateChange)) func() { return func() {} }

func whoami(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromCtx(r)
	role, _ := middleware.RoleFromCtx(r)
	w.Header().Set("X-User", uid)
	w.Header().Set("X-Role", role)
	w.WriteHeader(http.StatusOK)
}

func withSession(r *http.Request, values map[string]string) *http.Request {
	mgr := session.NewManager(cache.NewMemory(), session.DefaultOptions())
	s := mgr.New()
	for k, v := range values {
		s.Set(k, v)
	}
	return r.WithContext(session.WithSession(r.Context(), s))
}

func TestAuthenticateFromSession(t *testing.T) {
	h := middleware.Authenticate(tokens{"tok": "u1"}, nil)(http.HandlerFunc(whoami))

	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{
		session.KeyToken: "tok", session.KeyUserID: "u1", session.KeyUserRole: "seller",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Header().Get("X-User"))
	assert.Equal(t, "seller", rec.Header().Get("X-Role"))
}

func TestAuthenticateBearerUsesRoleLookup(t *testing.T) {
	lookup := func(_ context.Context, uid string) (string, error) {
		if uid == "u2" {
			return "admin", nil
		}
		return "", errors.New("unknown")
	}
	h := middleware.Authenticate(tokens{"tok2": "u2"}, lookup)(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-Role"))
}

func TestAuthenticateRejects(t *testing.T) {
	h := middleware.Authenticate(tokens{"tok": "u1"}, nil)(http.HandlerFunc(whoami))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHasRole(t *testing.T) {
	h := middleware.Authenticate(tokens{"tok": "u1"}, nil)(
		rbac.HasRole(rbac.RoleSeller, rbac.RoleAdmin)(http.HandlerFunc(whoami)))

	for role, want := range map[string]int{
		"seller": http.StatusOK,
		"admin":  http.StatusOK,
		"user":   http.StatusForbidden,
	} {
		req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{
			session.KeyToken: "tok", session.KeyUserID: "u1", session.KeyUserRole: role,
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestRateLimit(t *testing.T) {
	store := cache.NewMemory()
	h := middleware.RateLimit(store, 2, time.Hour)(http.HandlerFunc(whoami))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")
}

func TestRecoveryAndLogger(t *testing.T) {
	h := reqid.Middleware()(middleware.Logger(middleware.Recovery(http.HandlerFunc(
		func(http.ResponseWriter, *http.Request) { panic("kaboom") }))))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(reqid.Header))
}

func TestRecoveryRepanicsAbort(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		MaxAge:         60,
	})(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "60", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}
