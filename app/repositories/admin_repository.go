package repositories

import (
	"context"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/validate"
)

// AdminRepository backs the admin console: seller activation and the
// payment-method registry.
type AdminRepository struct {
	store docstore.Store
}

func NewAdminRepository(store docstore.Store) *AdminRepository {
	return &AdminRepository{store: store}
}

// ListSellers returns every profile with role seller.
func (r *AdminRepository) ListSellers(ctx context.Context) ([]models.User, error) {
	docs, err := r.store.Find(ctx, docstore.From(UsersCollection).Where("role", docstore.Eq, models.RoleSeller))
	if err != nil {
		logger.WithCtx(ctx).Error("admin: list sellers failed", "error", err)
		return nil, apperr.Upstream("admin: list sellers", err)
	}
	return decodeAll[models.User, *models.User](ctx, "admin: sellers", docs), nil
}

// SetSellerActive sets isActive on the profile and stamps updatedAt.
func (r *AdminRepository) SetSellerActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return apperr.InvalidArgument("seller id is required")
	}
	if err := r.store.Update(ctx, UsersCollection, id, docstore.Fields{
		"isActive":  active,
		"updatedAt": docstore.ServerTimestamp,
	}); err != nil {
		return writeErr(ctx, "admin: set seller active", UsersCollection, id, err)
	}
	logger.WithCtx(ctx).Info("admin: seller activation changed", "user_id", id, "active", active)
	return nil
}

func (r *AdminRepository) ActivateSeller(ctx context.Context, id string) error {
	return r.SetSellerActive(ctx, id, true)
}

func (r *AdminRepository) DeactivateSeller(ctx context.Context, id string) error {
	return r.SetSellerActive(ctx, id, false)
}

// AddPaymentMethod registers an active payment method and returns its id.
func (r *AdminRepository) AddPaymentMethod(ctx context.Context, in models.NewPaymentMethod) (string, error) {
	if err := validate.Check(in); err != nil {
		return "", invalid(err)
	}
	id, err := r.store.Add(ctx, PaymentMethodsCollection, docstore.Fields{
		"type":      in.Type,
		"details":   in.Details,
		"isActive":  true,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		logger.WithCtx(ctx).Error("admin: add payment method failed", "type", in.Type, "error", err)
		return "", apperr.Upstream("admin: add payment method", err)
	}
	logger.WithCtx(ctx).Info("admin: payment method added", "payment_id", id)
	return id, nil
}

// ListPaymentMethods returns every payment method.
func (r *AdminRepository) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	docs, err := r.store.Find(ctx, docstore.From(PaymentMethodsCollection))
	if err != nil {
		logger.WithCtx(ctx).Error("admin: list payment methods failed", "error", err)
		return nil, apperr.Upstream("admin: list payment methods", err)
	}
	return decodeAll[models.PaymentMethod, *models.PaymentMethod](ctx, "admin: payment methods", docs), nil
}
