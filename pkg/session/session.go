// Package session is the Session Store: an explicit session object holding
// the signed-in user's role, id and name, persisted in the cache.
//
// Usage (middleware):
//
//	mgr := session.NewManager(store, session.DefaultOptions())
//	r.Use(mgr.Middleware())
//
// Usage (handler):
//
//	sess := session.FromCtx(r.Context())
//	sess.Set(session.KeyUserID, uid)
//	_ = sess.Save(r.Context())
//	role := sess.Role()
//
// Concurrent requests on one session are not coordinated: the last Save
// wins.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/campusmart/config"
	"github.com/shashiranjanraj/campusmart/pkg/cache"
)

// Keys stored in a session.
const (
	KeyUserRole = "userRole"
	KeyUserID   = "userId"
	KeyUserName = "userName"
	KeyToken    = "token"
)

// ------------------- Options -------------------

// Options configures session behaviour.
type Options struct {
	CookieName string
	TTL        time.Duration
	HTTPOnly   bool
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

// DefaultOptions returns the cookie settings for the current environment.
func DefaultOptions() Options {
	return Options{
		CookieName: "campusmart_session",
		TTL:        config.SessionTTL(),
		HTTPOnly:   true,
		Secure:     config.IsProduction(),
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

// ------------------- Manager -------------------

// Manager creates and loads sessions.
type Manager struct {
	store cache.Store
	opts  Options
}

// NewManager persists sessions in store.
func NewManager(store cache.Store, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{store: store, opts: opts}
}

// Options returns the manager's cookie settings.
func (m *Manager) Options() Options { return m.opts }

// New returns an empty, unsaved session with a fresh id.
func (m *Manager) New() *Session {
	return &Session{id: uuid.NewString(), mgr: m, data: map[string]string{}}
}

// Load returns the session stored under id, or an empty session with that
// id when nothing is stored.
func (m *Manager) Load(ctx context.Context, id string) *Session {
	s := &Session{id: id, mgr: m, data: map[string]string{}}
	var data map[string]string
	if m.store.Get(ctx, cacheKey(id), &data) && data != nil {
		s.data = data
	}
	return s
}

func cacheKey(id string) string { return "campusmart:session:" + id }

// ------------------- Session -------------------

// Session is one user's session. Values are plain strings.
type Session struct {
	id  string
	mgr *Manager

	mu   sync.RWMutex
	data map[string]string
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Set stores a value under key in the session.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// GetString returns the value under key.
func (s *Session) GetString(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) value(key string) string {
	v, _ := s.GetString(key)
	return v
}

func (s *Session) UserID() string   { return s.value(KeyUserID) }
func (s *Session) Role() string     { return s.value(KeyUserRole) }
func (s *Session) UserName() string { return s.value(KeyUserName) }
func (s *Session) Token() string    { return s.value(KeyToken) }

// Values returns a copy of every stored value.
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Empty reports whether the session holds no values.
func (s *Session) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data) == 0
}

// Save persists the session.
func (s *Session) Save(ctx context.Context) error {
	values := s.Values()
	if err := s.mgr.store.Set(ctx, cacheKey(s.id), values, s.mgr.opts.TTL); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Clear wipes every value and deletes the persisted record.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = map[string]string{}
	s.mu.Unlock()
	if err := s.mgr.store.Del(ctx, cacheKey(s.id)); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// ------------------- Middleware -------------------

type ctxKey struct{}

// Middleware loads (or creates) the session for every request and injects it
// into the request context. A cookie is issued when the request had none.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *Session
			if cookie, err := r.Cookie(m.opts.CookieName); err == nil && cookie.Value != "" {
				sess = m.Load(r.Context(), cookie.Value)
			} else {
				sess = m.New()
				http.SetCookie(w, &http.Cookie{
					Name:     m.opts.CookieName,
					Value:    sess.id,
					Path:     m.opts.Path,
					MaxAge:   int(m.opts.TTL.Seconds()),
					HttpOnly: m.opts.HTTPOnly,
					Secure:   m.opts.Secure,
					SameSite: m.opts.SameSite,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromCtx returns the session bound by Middleware, or nil.
func FromCtx(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
