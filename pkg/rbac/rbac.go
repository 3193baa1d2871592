// Package rbac guards routes by the role Authenticate placed in the request
// context.
package rbac

import (
	"net/http"

	"github.com/shashiranjanraj/campusmart/pkg/middleware"
	"github.com/shashiranjanraj/campusmart/pkg/response"
)

// Role names stored on user records and in sessions.
const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// HasRole allows access only to callers holding one of roles.
// middleware.Authenticate must run first.
//
//	seller := api.Group("/seller", auth, rbac.HasRole(rbac.RoleSeller, rbac.RoleAdmin))
func HasRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := middleware.RoleFromCtx(r)
			if !ok || !allowed[role] {
				response.Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
