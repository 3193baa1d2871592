// Package routes is the HTTP route table.
package routes

import (
	"context"
	"net/http"
	"time"

	gql "github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/campusmart/app/controllers"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/app/services"
	"github.com/shashiranjanraj/campusmart/pkg/ctx"
	"github.com/shashiranjanraj/campusmart/pkg/graphql"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/metrics"
	"github.com/shashiranjanraj/campusmart/pkg/middleware"
	"github.com/shashiranjanraj/campusmart/pkg/rbac"
	"github.com/shashiranjanraj/campusmart/pkg/router"
)

// Deps is everything the route table hands to controllers.
type Deps struct {
	Identity identity.Provider
	Auth     *services.AuthService
	Users    *repositories.UserRepository
	Products *repositories.ProductRepository
	Cart     *repositories.CartRepository
	Comments *repositories.CommentRepository
	Admin    *repositories.AdminRepository
	Schema   gql.Schema
	// Health reports whether the backends are reachable.
	Health func(context.Context) error
}

func RegisterAPI(r *router.Router, d Deps) {
	authController := controllers.NewAuthController(d.Auth)
	productController := controllers.NewProductController(d.Products)
	cartController := controllers.NewCartController(d.Cart)
	commentController := controllers.NewCommentController(d.Comments, d.Products)
	adminController := controllers.NewAdminController(d.Admin)

	authenticated := middleware.Authenticate(d.Identity, d.Users.Role)
	sellers := rbac.HasRole(rbac.RoleSeller, rbac.RoleAdmin)
	admins := rbac.HasRole(rbac.RoleAdmin)

	r.Get("/healthz", "health", healthz(d.Health))
	r.Get("/metrics", "metrics", metrics.Handler())
	r.Handle("/graphql", "graphql", graphql.Handler(d.Schema))

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", "auth.register", ctx.Wrap(authController.Register))
	auth.Post("/login", "auth.login", ctx.Wrap(authController.Login))
	auth.Post("/login/seller", "auth.login.seller", ctx.Wrap(authController.LoginSeller))
	auth.Post("/login/admin", "auth.login.admin", ctx.Wrap(authController.LoginAdmin))
	auth.Post("/logout", "auth.logout", ctx.Wrap(authController.Logout))
	auth.Get("/me", "auth.me", ctx.Wrap(authController.Me))

	api.Get("/products", "products.index", ctx.Wrap(productController.Index))
	api.Get("/products/live", "products.live", ctx.Wrap(productController.Live))
	api.Get("/products/{id}", "products.show", ctx.Wrap(productController.Show))
	api.Get("/products/{id}/comments", "comments.index", ctx.Wrap(commentController.Index))
	api.Get("/products/{id}/comments/live", "comments.live", ctx.Wrap(commentController.Live))

	member := api.Group("", authenticated)
	member.Post("/products/{id}/comments", "comments.store", ctx.Wrap(commentController.Store))

	cart := member.Group("/cart")
	cart.Get("", "cart.index", ctx.Wrap(cartController.Index))
	cart.Post("", "cart.add", ctx.Wrap(cartController.Add))
	cart.Delete("", "cart.clear", ctx.Wrap(cartController.Clear))
	cart.Get("/count", "cart.count", ctx.Wrap(cartController.Count))
	cart.Patch("/{itemId}", "cart.update", ctx.Wrap(cartController.Update))
	cart.Delete("/{itemId}", "cart.remove", ctx.Wrap(cartController.Remove))

	seller := member.Group("", sellers)
	seller.Post("/products", "products.store", ctx.Wrap(productController.Store))
	seller.Post("/products/images", "products.images", ctx.Wrap(productController.UploadImage))
	seller.Patch("/products/{id}", "products.update", ctx.Wrap(productController.Update))
	seller.Delete("/products/{id}", "products.destroy", ctx.Wrap(productController.Destroy))
	seller.Get("/seller/products", "seller.products", ctx.Wrap(productController.Mine))

	admin := member.Group("/admin", admins)
	admin.Get("/sellers", "admin.sellers", ctx.Wrap(adminController.Sellers))
	admin.Post("/sellers/{id}/activate", "admin.sellers.activate", ctx.Wrap(adminController.Activate))
	admin.Post("/sellers/{id}/deactivate", "admin.sellers.deactivate", ctx.Wrap(adminController.Deactivate))
	admin.Get("/payment-methods", "admin.payments.index", ctx.Wrap(adminController.PaymentMethods))
	admin.Post("/payment-methods", "admin.payments.store", ctx.Wrap(adminController.StorePaymentMethod))
}

func healthz(check func(context.Context) error) http.HandlerFunc {
	return ctx.Wrap(func(c *ctx.Context) {
		if check != nil {
			cctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := check(cctx); err != nil {
				c.Error(http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		c.Success(map[string]string{"status": "ok"})
	})
}
