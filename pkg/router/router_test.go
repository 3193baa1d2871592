package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

func tag(v string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", v)
			next.ServeHTTP(w, r)
		})
	}
}

func TestGroupsComposePrefixAndMiddleware(t *testing.T) {
	r := New()
	api := r.Group("/api", tag("api"))
	cart := api.Group("cart", tag("cart"))
	cart.Patch("/{itemId}", "cart.update", ok)
	cart.Delete("/{itemId}", "cart.remove", ok)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/cart/abc", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"api", "cart"}, rec.Header().Values("X-Chain"))

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart/abc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNamedRoutesAndURL(t *testing.T) {
	r := New()
	r.Group("/api").Get("/products/{id}", "products.show", ok)

	u, err := r.URL("products.show", map[string]string{"id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "/api/products/p1", u)

	_, err = r.URL("products.show", nil)
	assert.Error(t, err)
	_, err = r.URL("nope", nil)
	assert.Error(t, err)
}

func TestRoutesTable(t *testing.T) {
	r := New()
	r.Post("/graphql", "", ok)
	r.Get("/healthz", "health", ok)
	r.Handle("/metrics", "metrics", http.HandlerFunc(ok))

	assert.Equal(t, []RouteInfo{
		{Method: "POST", Path: "/graphql"},
		{Method: "GET", Path: "/healthz", Name: "health"},
		{Method: "ANY", Path: "/metrics", Name: "metrics"},
	}, r.Routes())
}
