package seeders

import (
	"context"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

func init() {
	Register("payment-methods", SeedPaymentMethods)
}

// DefaultPaymentMethods are registered on an empty store.
var DefaultPaymentMethods = []models.NewPaymentMethod{
	{Type: "cash", Details: "Cash on pickup"},
	{Type: "upi", Details: "UPI transfer to the seller"},
	{Type: "card", Details: "Campus card"},
}

// SeedPaymentMethods adds DefaultPaymentMethods unless payment methods exist.
func SeedPaymentMethods(ctx context.Context, env Env) error {
	existing, err := env.Admin.ListPaymentMethods(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("payment methods already present", "count", len(existing))
		return nil
	}
	for _, pm := range DefaultPaymentMethods {
		if _, err := env.Admin.AddPaymentMethod(ctx, pm); err != nil {
			return err
		}
	}
	return nil
}
