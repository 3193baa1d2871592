// Package services holds the Auth Gateway: registration, role-gated logins
// and logout on top of the identity backend, the user profiles and the
// caller's session.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/session"
)

// RegisterInput is the registration form.
type RegisterInput struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"nullable,in=user,seller,admin"`
}

// LoginResult is returned by the login variants.
type LoginResult struct {
	Account identity.Account `json:"account"`
	User    models.User      `json:"user"`
}

// AuthService is the Auth Gateway.
type AuthService struct {
	identity identity.Provider
	users    *repositories.UserRepository
}

func NewAuthService(provider identity.Provider, users *repositories.UserRepository) *AuthService {
	return &AuthService{identity: provider, users: users}
}

// Register creates the identity and then the users/{uid} profile. Role
// defaults to user. A failed profile write leaves the identity in place.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (identity.Account, error) {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = models.RoleUser
	}
	switch role {
	case models.RoleUser, models.RoleSeller, models.RoleAdmin:
	default:
		return identity.Account{}, apperr.InvalidArgument("unknown role %q", role)
	}

	acct, err := s.identity.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		logger.WithCtx(ctx).Error("auth: registration failed", "email", in.Email, "error", err)
		return identity.Account{}, err
	}

	err = s.users.Create(ctx, models.User{
		UserID:   acct.UID,
		Name:     in.Name,
		Email:    acct.Email,
		Role:     role,
		IsActive: true,
	})
	if err != nil {
		logger.WithCtx(ctx).Error("auth: profile write failed, identity left without profile",
			"uid", acct.UID, "error", err)
		return identity.Account{}, err
	}

	logger.WithCtx(ctx).Info("auth: user registered", "uid", acct.UID, "role", role)
	return acct, nil
}

// Login signs in, reads the profile and stores userRole, userId, userName
// and the token in sess.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, email, password string) (*LoginResult, error) {
	cred, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		logger.WithCtx(ctx).Error("auth: login failed", "email", email, "error", err)
		return nil, err
	}

	user, err := s.users.GetByID(ctx, cred.Account.UID)
	if err != nil {
		logger.WithCtx(ctx).Error("auth: profile read failed", "uid", cred.Account.UID, "error", err)
		_ = s.identity.SignOut(ctx, cred.Token)
		return nil, err
	}

	sess.Set(session.KeyUserRole, user.Role)
	sess.Set(session.KeyUserID, cred.Account.UID)
	sess.Set(session.KeyUserName, user.Name)
	sess.Set(session.KeyToken, cred.Token)
	if err := sess.Save(ctx); err != nil {
		logger.WithCtx(ctx).Error("auth: session save failed", "uid", cred.Account.UID, "error", err)
		_ = s.identity.SignOut(ctx, cred.Token)
		return nil, apperr.Upstream("auth: login", err)
	}

	logger.WithCtx(ctx).Info("auth: logged in", "uid", cred.Account.UID, "role", user.Role)
	return &LoginResult{Account: cred.Account, User: user}, nil
}

// LoginSeller is Login restricted to sellers and admins.
func (s *AuthService) LoginSeller(ctx context.Context, sess *session.Session, email, password string) (*LoginResult, error) {
	return s.loginAs(ctx, sess, email, password, "Seller", models.RoleSeller, models.RoleAdmin)
}

// LoginAdmin is Login restricted to admins.
func (s *AuthService) LoginAdmin(ctx context.Context, sess *session.Session, email, password string) (*LoginResult, error) {
	return s.loginAs(ctx, sess, email, password, "Admin", models.RoleAdmin)
}

func (s *AuthService) loginAs(ctx context.Context, sess *session.Session, email, password, label string, roles ...string) (*LoginResult, error) {
	res, err := s.Login(ctx, sess, email, password)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if res.User.Role == role {
			return res, nil
		}
	}

	logger.WithCtx(ctx).Warn("auth: role check failed", "uid", res.Account.UID, "role", res.User.Role, "want", roles)
	_ = s.Logout(ctx, sess)
	return nil, apperr.AccessDenied("%s credentials required", label)
}

// Logout signs out and clears sess. The session is cleared even when the
// sign-out fails; that error is returned.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	uid := sess.UserID()
	signOutErr := s.identity.SignOut(ctx, sess.Token())
	if signOutErr != nil {
		logger.WithCtx(ctx).Error("auth: sign out failed", "uid", uid, "error", signOutErr)
	}
	if err := sess.Clear(ctx); err != nil {
		logger.WithCtx(ctx).Error("auth: session clear failed", "uid", uid, "error", err)
		return errors.Join(signOutErr, apperr.Upstream("auth: logout", err))
	}
	if signOutErr == nil {
		logger.WithCtx(ctx).Info("auth: logged out", "uid", uid)
	}
	return signOutErr
}

// IsAuthenticated reports whether sess carries a token that still verifies.
func (s *AuthService) IsAuthenticated(ctx context.Context, sess *session.Session) bool {
	if sess == nil || sess.Token() == "" {
		return false
	}
	acct, err := s.identity.Verify(ctx, sess.Token())
	return err == nil && acct.UID == sess.UserID()
}

// CurrentUser returns the signed-in user's profile, or nil when there is no
// signed-in session or the profile cannot be read.
func (s *AuthService) CurrentUser(ctx context.Context, sess *session.Session) *models.User {
	if !s.IsAuthenticated(ctx, sess) {
		return nil
	}
	u, err := s.users.GetByID(ctx, sess.UserID())
	if err != nil {
		logger.WithCtx(ctx).Error("auth: reading current user failed", "uid", sess.UserID(), "error", err)
		return nil
	}
	return &u
}

// OnAuthStateChanged registers fn for sign-in and sign-out events.
func (s *AuthService) OnAuthStateChanged(fn func(identity.StateChange)) (unsubscribe func()) {
	return s.identity.OnAuthStateChanged(fn)
}

// ── Error messages ───────────────────────────────────────────────────────────

var authMessages = map[string]string{
	identity.CodeEmailInUse:     "This email is already registered. Please login instead.",
	identity.CodeInvalidEmail:   "Invalid email address.",
	identity.CodeWeakPassword:   "Password should be at least 6 characters.",
	identity.CodeUserNotFound:   "No account found with this email.",
	identity.CodeWrongPassword:  "Incorrect password.",
	identity.CodeTooMany:        "Too many failed attempts. Please try again later.",
	identity.CodeNetworkFailure: "Network error. Please check your connection.",
}

// AuthErrorMessage turns an auth failure into the message shown to the user.
func AuthErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := authMessages[identity.CodeOf(err)]; ok {
		return msg
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An error occurred. Please try again."
}

// AuthStatus is the HTTP status for an auth failure.
func AuthStatus(err error) int {
	switch identity.CodeOf(err) {
	case identity.CodeEmailInUse:
		return http.StatusConflict
	case identity.CodeInvalidEmail, identity.CodeWeakPassword:
		return http.StatusUnprocessableEntity
	case identity.CodeUserNotFound, identity.CodeWrongPassword, identity.CodeInvalidToken:
		return http.StatusUnauthorized
	case identity.CodeTooMany:
		return http.StatusTooManyRequests
	case identity.CodeNetworkFailure:
		return http.StatusServiceUnavailable
	}
	return apperr.Status(err)
}
