package repositories

import (
	"context"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/validate"
)

// UserRepository reads and writes the profiles at users/{uid}.
type UserRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create writes the profile of u.UserID, stamping createdAt.
func (r *UserRepository) Create(ctx context.Context, u models.User) error {
	if u.UserID == "" {
		return apperr.InvalidArgument("user id is required")
	}
	if err := validate.Check(u); err != nil {
		return invalid(err)
	}
	if err := r.store.Set(ctx, UsersCollection, u.UserID, docstore.Fields{
		"userId":    u.UserID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"isActive":  u.IsActive,
		"createdAt": docstore.ServerTimestamp,
	}); err != nil {
		logger.WithCtx(ctx).Error("users: create failed", "user_id", u.UserID, "error", err)
		return apperr.Upstream("users: create", err)
	}
	logger.WithCtx(ctx).Info("users: profile created", "user_id", u.UserID, "role", u.Role)
	return nil
}

// GetByID returns the profile or a NotFound error.
func (r *UserRepository) GetByID(ctx context.Context, uid string) (models.User, error) {
	return getOne[models.User, *models.User](ctx, r.store, "users: get", UsersCollection, uid)
}

// Role returns the stored role of uid.
func (r *UserRepository) Role(ctx context.Context, uid string) (string, error) {
	u, err := r.GetByID(ctx, uid)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}
