package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/event"
)

type fixture struct {
	svc   *Service
	store *docstore.Memory
	cache *cache.Memory
	now   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{store: docstore.NewMemory(), cache: cache.NewMemory(), now: &now}
	f.cache.SetClock(func() time.Time { return *f.now })
	f.svc = NewService(f.store, f.cache, event.New(), Options{
		Secret:        []byte("test-secret"),
		TokenTTL:      time.Hour,
		MaxAttempts:   3,
		AttemptWindow: 15 * time.Minute,
		HashCost:      bcrypt.MinCost,
		Now:           func() time.Time { return *f.now },
	})
	return f
}

func TestCreateAccountValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "not-an-email", "secret1")
	assert.Equal(t, CodeInvalidEmail, CodeOf(err))

	_, err = f.svc.CreateAccount(ctx, "a@campus.edu", "12345")
	assert.Equal(t, CodeWeakPassword, CodeOf(err))

	acct, err := f.svc.CreateAccount(ctx, " A@Campus.edu ", "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, acct.UID)
	assert.Equal(t, "a@campus.edu", acct.Email)

	_, err = f.svc.CreateAccount(ctx, "a@campus.edu", "another")
	assert.Equal(t, CodeEmailInUse, CodeOf(err))
}

func TestCreateAccountBackendDown(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext("find", AccountsCollection, docstore.ErrUnavailable)

	_, err := f.svc.CreateAccount(context.Background(), "a@campus.edu", "123456")
	assert.Equal(t, CodeNetworkFailure, CodeOf(err))
	assert.ErrorIs(t, err, docstore.ErrUnavailable)
}

func TestSignInVerifySignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct, err := f.svc.CreateAccount(ctx, "a@campus.edu", "123456")
	require.NoError(t, err)

	var changes []StateChange
	stop := f.svc.OnAuthStateChanged(func(sc StateChange) { changes = append(changes, sc) })
	defer stop()

	cred, err := f.svc.SignIn(ctx, "A@campus.edu", "123456")
	require.NoError(t, err)
	assert.Equal(t, acct.UID, cred.Account.UID)
	assert.True(t, f.now.Add(time.Hour).Equal(cred.ExpiresAt))

	got, err := f.svc.Verify(ctx, cred.Token)
	require.NoError(t, err)
	assert.Equal(t, acct.UID, got.UID)

	require.NoError(t, f.svc.SignOut(ctx, cred.Token))
	_, err = f.svc.Verify(ctx, cred.Token)
	assert.Equal(t, CodeInvalidToken, CodeOf(err))

	assert.Equal(t, []StateChange{{UID: acct.UID, SignedIn: true}, {UID: acct.UID, SignedIn: false}}, changes)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateAccount(ctx, "a@campus.edu", "123456")
	require.NoError(t, err)
	cred, err := f.svc.SignIn(ctx, "a@campus.edu", "123456")
	require.NoError(t, err)

	other := NewService(f.store, f.cache, event.New(), Options{Secret: []byte("other"), Now: f.svc.opts.Now})
	_, err = other.Verify(ctx, cred.Token)
	assert.Equal(t, CodeInvalidToken, CodeOf(err))

	*f.now = f.now.Add(2 * time.Hour)
	_, err = f.svc.Verify(ctx, cred.Token)
	assert.Equal(t, CodeInvalidToken, CodeOf(err))

	assert.NoError(t, f.svc.SignOut(ctx, cred.Token), "signing out an expired token is a no-op")
	assert.NoError(t, f.svc.SignOut(ctx, ""))
}

func TestSignInFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateAccount(ctx, "a@campus.edu", "123456")
	require.NoError(t, err)

	_, err = f.svc.SignIn(ctx, "nobody@campus.edu", "123456")
	assert.Equal(t, CodeUserNotFound, CodeOf(err))

	_, err = f.svc.SignIn(ctx, "a@campus.edu", "wrong!")
	assert.Equal(t, CodeWrongPassword, CodeOf(err))
}

func TestSignInThrottle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateAccount(ctx, "a@campus.edu", "123456")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.svc.SignIn(ctx, "a@campus.edu", "wrong!")
		require.Equal(t, CodeWrongPassword, CodeOf(err))
	}
	_, err = f.svc.SignIn(ctx, "a@campus.edu", "123456")
	assert.Equal(t, CodeTooMany, CodeOf(err), "correct password is refused while throttled")

	*f.now = f.now.Add(16 * time.Minute)
	_, err = f.svc.SignIn(ctx, "a@campus.edu", "123456")
	assert.NoError(t, err)
}

func TestContextErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SignIn(ctx, "a@campus.edu", "123456")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, CodeOf(err))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "auth/wrong-password", newError(CodeWrongPassword, "", nil).Error())
	assert.Equal(t, "auth/invalid-email: x", newError(CodeInvalidEmail, "x", nil).Error())
}
