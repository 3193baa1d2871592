package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/response"
	"github.com/shashiranjanraj/campusmart/pkg/session"
)

type principalKey struct{}

type principal struct {
	userID string
	role   string
}

// RoleLookup resolves the stored role of a user. It is consulted when the
// caller authenticated with a bearer token instead of a session.
type RoleLookup func(ctx context.Context, uid string) (string, error)

// Authenticate verifies the caller's token and records the user id and role
// in the request context. The token is read from the session first, then
// from an "Authorization: Bearer" header. Requests without a valid token get
// a 401.
//
//	api.Group("/cart", middleware.Authenticate(provider, users.Role))
func Authenticate(verifier identity.Provider, roles RoleLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromCtx(r.Context())

			token := ""
			if sess != nil {
				token = sess.Token()
			}
			if token == "" {
				token = bearer(r)
			}
			if token == "" {
				response.Unauthorized(w)
				return
			}

			acct, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.WithCtx(r.Context()).Debug("auth: token rejected", "code", identity.CodeOf(err))
				response.Unauthorized(w)
				return
			}

			p := principal{userID: acct.UID}
			if sess != nil && sess.UserID() == acct.UID {
				p.role = sess.Role()
			}
			if p.role == "" && roles != nil {
				role, err := roles(r.Context(), acct.UID)
				if err != nil {
					logger.WithCtx(r.Context()).Warn("auth: role lookup failed", "uid", acct.UID, "error", err)
				}
				p.role = role
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// UserIDFromCtx returns the authenticated user id.
func UserIDFromCtx(r *http.Request) (string, bool) {
	p, ok := r.Context().Value(principalKey{}).(principal)
	if !ok || p.userID == "" {
		return "", false
	}
	return p.userID, true
}

// RoleFromCtx returns the authenticated user's role.
func RoleFromCtx(r *http.Request) (string, bool) {
	p, ok := r.Context().Value(principalKey{}).(principal)
	if !ok || p.role == "" {
		return "", false
	}
	return p.role, true
}
