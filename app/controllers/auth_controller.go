package controllers

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/campusmart/app/services"
	"github.com/shashiranjanraj/campusmart/pkg/ctx"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/session"
)

// AuthController exposes the Auth Gateway.
type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type loginInput struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginFunc func(context.Context, *session.Session, string, string) (*services.LoginResult, error)

// failAuth answers identity failures with the user-facing message table and
// everything else through Fail.
func failAuth(c *ctx.Context, err error) {
	if identity.CodeOf(err) != "" {
		c.Error(services.AuthStatus(err), services.AuthErrorMessage(err))
		return
	}
	c.Fail(err)
}

func requireSession(c *ctx.Context) *session.Session {
	sess := c.Session()
	if sess == nil {
		c.Error(http.StatusInternalServerError, "session unavailable")
	}
	return sess
}

// registerInput is the public sign-up form. Admin accounts are only created
// by the seeder.
type registerInput struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"nullable,in=user,seller"`
}

// POST /api/auth/register
func (ac *AuthController) Register(c *ctx.Context) {
	var in registerInput
	if !c.BindJSON(&in) {
		return
	}
	acct, err := ac.auth.Register(c.Context(), services.RegisterInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     in.Role,
	})
	if err != nil {
		failAuth(c, err)
		return
	}
	c.Created(acct)
}

func (ac *AuthController) login(c *ctx.Context, fn loginFunc) {
	var in loginInput
	if !c.BindJSON(&in) {
		return
	}
	sess := requireSession(c)
	if sess == nil {
		return
	}
	res, err := fn(c.Context(), sess, in.Email, in.Password)
	if err != nil {
		failAuth(c, err)
		return
	}
	c.Success(res)
}

// POST /api/auth/login
func (ac *AuthController) Login(c *ctx.Context) { ac.login(c, ac.auth.Login) }

// POST /api/auth/login/seller
func (ac *AuthController) LoginSeller(c *ctx.Context) { ac.login(c, ac.auth.LoginSeller) }

// POST /api/auth/login/admin
func (ac *AuthController) LoginAdmin(c *ctx.Context) { ac.login(c, ac.auth.LoginAdmin) }

// POST /api/auth/logout
func (ac *AuthController) Logout(c *ctx.Context) {
	if err := ac.auth.Logout(c.Context(), c.Session()); err != nil {
		failAuth(c, err)
		return
	}
	c.Message("Logged out")
}

// GET /api/auth/me
func (ac *AuthController) Me(c *ctx.Context) {
	u := ac.auth.CurrentUser(c.Context(), c.Session())
	if u == nil {
		c.Unauthorized()
		return
	}
	c.Success(u)
}
