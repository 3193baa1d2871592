package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/app/services"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/event"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/session"
)

type fixture struct {
	store    *docstore.Memory
	sessions *session.Manager
	provider *identity.Service
	users    *repositories.UserRepository
	auth     *services.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemory()
	c := cache.NewMemory()
	provider := identity.NewService(store, c, event.New(), identity.Options{
		Secret:   []byte("test-secret"),
		TokenTTL: time.Hour,
		HashCost: bcrypt.MinCost,
	})
	users := repositories.NewUserRepository(store)
	return &fixture{
		store:    store,
		sessions: session.NewManager(c, session.DefaultOptions()),
		provider: provider,
		users:    users,
		auth:     services.NewAuthService(provider, users),
	}
}

func (f *fixture) register(t *testing.T, name, email, role string) string {
	t.Helper()
	acct, err := f.auth.Register(context.Background(), services.RegisterInput{
		Name: name, Email: email, Password: "secret1", Role: role,
	})
	require.NoError(t, err)
	return acct.UID
}

func TestRegisterCreatesProfile(t *testing.T) {
	f := newFixture(t)
	uid := f.register(t, "Asha", "asha@campus.edu", "")

	u, err := f.users.GetByID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, uid, u.UserID)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, models.RoleUser, u.Role, "role defaults to user")
	assert.True(t, u.IsActive)
	assert.NotNil(t, u.CreatedAt)
}

func TestRegisterFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Register(ctx, services.RegisterInput{Name: "X", Email: "x@campus.edu", Password: "secret1", Role: "owner"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	f.register(t, "Asha", "asha@campus.edu", models.RoleSeller)
	_, err = f.auth.Register(ctx, services.RegisterInput{Name: "Asha", Email: "asha@campus.edu", Password: "secret1"})
	assert.Equal(t, identity.CodeEmailInUse, identity.CodeOf(err))
	assert.Equal(t, "This email is already registered. Please login instead.", services.AuthErrorMessage(err))

	_, err = f.auth.Register(ctx, services.RegisterInput{Name: "Ravi", Email: "ravi@campus.edu", Password: "123"})
	assert.Equal(t, "Password should be at least 6 characters.", services.AuthErrorMessage(err))
}

func TestRegisterProfileFailureKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.FailNext("set", repositories.UsersCollection, docstore.ErrUnavailable)

	_, err := f.auth.Register(ctx, services.RegisterInput{Name: "Asha", Email: "asha@campus.edu", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	_, err = f.provider.SignIn(ctx, "asha@campus.edu", "secret1")
	assert.NoError(t, err, "the identity is not rolled back")
}

func TestLoginPopulatesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.register(t, "Asha", "asha@campus.edu", models.RoleSeller)

	sess := f.sessions.New()
	res, err := f.auth.Login(ctx, sess, "asha@campus.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, uid, res.Account.UID)
	assert.Equal(t, models.RoleSeller, res.User.Role)

	stored := f.sessions.Load(ctx, sess.ID())
	assert.Equal(t, models.RoleSeller, stored.Role())
	assert.Equal(t, uid, stored.UserID())
	assert.Equal(t, "Asha", stored.UserName())
	assert.NotEmpty(t, stored.Token())
	assert.True(t, f.auth.IsAuthenticated(ctx, stored))

	u := f.auth.CurrentUser(ctx, stored)
	require.NotNil(t, u)
	assert.Equal(t, "asha@campus.edu", u.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Asha", "asha@campus.edu", "")

	sess := f.sessions.New()
	_, err := f.auth.Login(context.Background(), sess, "asha@campus.edu", "nope!!")
	assert.Equal(t, "Incorrect password.", services.AuthErrorMessage(err))
	assert.True(t, sess.Empty())
}

// tokenRecorder remembers the last token handed out by SignIn.
type tokenRecorder struct {
	identity.Provider
	last string
}

func (r *tokenRecorder) SignIn(ctx context.Context, email, password string) (identity.Credential, error) {
	cred, err := r.Provider.SignIn(ctx, email, password)
	r.last = cred.Token
	return cred, err
}

func TestRoleGatedLogins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "Ravi", "ravi@campus.edu", models.RoleUser)
	f.register(t, "Asha", "asha@campus.edu", models.RoleSeller)
	f.register(t, "Root", "root@campus.edu", models.RoleAdmin)

	rec := &tokenRecorder{Provider: f.provider}
	auth := services.NewAuthService(rec, f.users)

	cases := []struct {
		name    string
		login   func(context.Context, *session.Session, string, string) (*services.LoginResult, error)
		email   string
		allowed bool
	}{
		{"seller as user", auth.LoginSeller, "ravi@campus.edu", false},
		{"seller as seller", auth.LoginSeller, "asha@campus.edu", true},
		{"seller as admin", auth.LoginSeller, "root@campus.edu", true},
		{"admin as seller", auth.LoginAdmin, "asha@campus.edu", false},
		{"admin as user", auth.LoginAdmin, "ravi@campus.edu", false},
		{"admin as admin", auth.LoginAdmin, "root@campus.edu", true},
	}
	for _, tc := range cases {
		sess := f.sessions.New()
		_, err := tc.login(ctx, sess, tc.email, "secret1")
		require.NotEmpty(t, rec.last, tc.name)
		_, verifyErr := f.provider.Verify(ctx, rec.last)
		if tc.allowed {
			assert.NoError(t, err, tc.name)
			assert.NoError(t, verifyErr, tc.name)
			assert.True(t, auth.IsAuthenticated(ctx, sess), tc.name)
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrAccessDenied, tc.name)
		assert.Equal(t, identity.CodeInvalidToken, identity.CodeOf(verifyErr), "%s: issued token must be signed out", tc.name)
		assert.True(t, sess.Empty(), "%s: session must be cleared", tc.name)
		assert.True(t, f.sessions.Load(ctx, sess.ID()).Empty(), "%s: stored session must be deleted", tc.name)
	}
}

func TestLogoutRevokesAndClears(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "Asha", "asha@campus.edu", "")

	sess := f.sessions.New()
	_, err := f.auth.Login(ctx, sess, "asha@campus.edu", "secret1")
	require.NoError(t, err)
	token := sess.Token()

	require.NoError(t, f.auth.Logout(ctx, sess))
	assert.True(t, sess.Empty())
	assert.False(t, f.auth.IsAuthenticated(ctx, sess))
	assert.Nil(t, f.auth.CurrentUser(ctx, sess))

	_, err = f.provider.Verify(ctx, token)
	assert.Equal(t, identity.CodeInvalidToken, identity.CodeOf(err))

	assert.NoError(t, f.auth.Logout(ctx, f.sessions.New()), "logging out an anonymous session is a no-op")
}

func TestCurrentUserWithoutProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "Asha", "asha@campus.edu", "")
	sess := f.sessions.New()
	_, err := f.auth.Login(ctx, sess, "asha@campus.edu", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(ctx, repositories.UsersCollection, sess.UserID()))
	assert.Nil(t, f.auth.CurrentUser(ctx, sess))
	assert.Nil(t, f.auth.CurrentUser(ctx, nil))
}

func TestOnAuthStateChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uid := f.register(t, "Asha", "asha@campus.edu", "")

	var changes []identity.StateChange
	stop := f.auth.OnAuthStateChanged(func(sc identity.StateChange) { changes = append(changes, sc) })

	sess := f.sessions.New()
	_, err := f.auth.Login(ctx, sess, "asha@campus.edu", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, sess))
	stop()
	_, err = f.auth.Login(ctx, f.sessions.New(), "asha@campus.edu", "secret1")
	require.NoError(t, err)

	assert.Equal(t, []identity.StateChange{
		{UID: uid, SignedIn: true},
		{UID: uid, SignedIn: false},
	}, changes)
}

func TestAuthErrorMessage(t *testing.T) {
	cases := map[string]string{
		identity.CodeInvalidEmail:   "Invalid email address.",
		identity.CodeUserNotFound:   "No account found with this email.",
		identity.CodeTooMany:        "Too many failed attempts. Please try again later.",
		identity.CodeNetworkFailure: "Network error. Please check your connection.",
	}
	for code, want := range cases {
		assert.Equal(t, want, services.AuthErrorMessage(&identity.Error{Code: code}), code)
	}
	assert.Equal(t, "disk on fire", services.AuthErrorMessage(errors.New("disk on fire")))
	assert.Empty(t, services.AuthErrorMessage(nil))
}

func TestAuthStatus(t *testing.T) {
	assert.Equal(t, 409, services.AuthStatus(&identity.Error{Code: identity.CodeEmailInUse}))
	assert.Equal(t, 401, services.AuthStatus(&identity.Error{Code: identity.CodeWrongPassword}))
	assert.Equal(t, 429, services.AuthStatus(&identity.Error{Code: identity.CodeTooMany}))
	assert.Equal(t, 403, services.AuthStatus(apperr.AccessDenied("admins only")))
}
