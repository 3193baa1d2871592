package seeders

import (
	"context"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/app/services"
	"github.com/shashiranjanraj/campusmart/config"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

func init() {
	Register("admin", SeedAdmin)
}

// SeedAdmin registers the ADMIN_EMAIL account with role admin. It is skipped
// when ADMIN_PASSWORD is empty or the account already exists.
func SeedAdmin(ctx context.Context, env Env) error {
	password := config.AdminPassword()
	if password == "" {
		logger.Warn("ADMIN_PASSWORD is empty, skipping admin account")
		return nil
	}

	acct, err := env.Auth.Register(ctx, services.RegisterInput{
		Name:     config.AdminName(),
		Email:    config.AdminEmail(),
		Password: password,
		Role:     models.RoleAdmin,
	})
	if identity.CodeOf(err) == identity.CodeEmailInUse {
		logger.Info("admin account already exists", "email", config.AdminEmail())
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("admin account created", "uid", acct.UID, "email", acct.Email)
	return nil
}
