// Package identity is the identity backend: accounts with bcrypt
// credentials, signed session tokens, sign-out revocation and auth-state
// change notifications.
//
// Errors carry a stable code (see the Code* constants) so the UI layer can
// map them onto user-facing messages:
//
//	cred, err := provider.SignIn(ctx, email, password)
//	var ierr *identity.Error
//	if errors.As(err, &ierr) && ierr.Code == identity.CodeWrongPassword { ... }
package identity

import (
	"context"
	"errors"
	"time"
)

// Error codes.
const (
	CodeEmailInUse     = "auth/email-already-in-use"
	CodeInvalidEmail   = "auth/invalid-email"
	CodeWeakPassword   = "auth/weak-password"
	CodeUserNotFound   = "auth/user-not-found"
	CodeWrongPassword  = "auth/wrong-password"
	CodeTooMany        = "auth/too-many-requests"
	CodeNetworkFailure = "auth/network-request-failed"
	CodeInvalidToken   = "auth/invalid-token"
)

// Auth-state event names fired on the dispatcher.
const (
	EventSignedIn  = "identity.signedIn"
	EventSignedOut = "identity.signedOut"
)

// Error is an identity failure with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the identity code carried by err, or "".
func CodeOf(err error) string {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Code
	}
	return ""
}

func newError(code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// Account is an identity record.
type Account struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credential is the result of a successful sign-in.
type Credential struct {
	Account   Account   `json:"account"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StateChange is the payload of EventSignedIn and EventSignedOut.
type StateChange struct {
	UID      string
	SignedIn bool
}

// Provider is the identity backend consumed by the auth gateway.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (Account, error)
	SignIn(ctx context.Context, email, password string) (Credential, error)
	SignOut(ctx context.Context, token string) error
	// Verify returns the account a still-valid token belongs to.
	Verify(ctx context.Context, token string) (Account, error)
	// OnAuthStateChanged registers fn for sign-in and sign-out events and
	// returns a function that removes it.
	OnAuthStateChanged(fn func(StateChange)) (unsubscribe func())
}
