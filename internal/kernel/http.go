// Package kernel builds the HTTP handler: the global middleware stack in
// front of the route table.
package kernel

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/campusmart/config"
	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/metrics"
	"github.com/shashiranjanraj/campusmart/pkg/middleware"
	"github.com/shashiranjanraj/campusmart/pkg/reqid"
	"github.com/shashiranjanraj/campusmart/pkg/router"
	"github.com/shashiranjanraj/campusmart/pkg/session"
)

// HTTPKernel owns the router and its global middleware.
type HTTPKernel struct {
	router   *router.Router
	sessions *session.Manager
}

// NewHTTPKernel installs the global middleware, then calls every route
// registration in order. store backs sessions and the rate limiter.
func NewHTTPKernel(store cache.Store, routes ...func(*router.Router)) *HTTPKernel {
	r := router.New()
	sessions := session.NewManager(store, session.DefaultOptions())

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics: total latency
	//  2. Recovery
	//  3. Request ID, before anything logs
	//  4. Logger, tagged with request_id
	//  5. CORS, so preflights never touch the session
	//  6. Rate limiter
	//  7. Session cookie
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(store, config.Int("RATE_LIMIT_PER_MINUTE", 300), time.Minute))
	r.Use(sessions.Middleware())

	for _, fn := range routes {
		fn(r)
	}
	return &HTTPKernel{router: r, sessions: sessions}
}

func (k *HTTPKernel) Handler() http.Handler { return k.router.Handler() }

func (k *HTTPKernel) Router() *router.Router { return k.router }

func (k *HTTPKernel) Sessions() *session.Manager { return k.sessions }
