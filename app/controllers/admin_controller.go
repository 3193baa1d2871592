package controllers

import (
	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/ctx"
)

type AdminController struct {
	admin *repositories.AdminRepository
}

func NewAdminController(admin *repositories.AdminRepository) *AdminController {
	return &AdminController{admin: admin}
}

// GET /api/admin/sellers
func (ac *AdminController) Sellers(c *ctx.Context) {
	sellers, err := ac.admin.ListSellers(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(sellers)
}

// POST /api/admin/sellers/{id}/activate
func (ac *AdminController) Activate(c *ctx.Context) {
	if err := ac.admin.ActivateSeller(c.Context(), c.Param("id")); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Seller activated")
}

// POST /api/admin/sellers/{id}/deactivate
func (ac *AdminController) Deactivate(c *ctx.Context) {
	if err := ac.admin.DeactivateSeller(c.Context(), c.Param("id")); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Seller deactivated")
}

// GET /api/admin/payment-methods
func (ac *AdminController) PaymentMethods(c *ctx.Context) {
	methods, err := ac.admin.ListPaymentMethods(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(methods)
}

// POST /api/admin/payment-methods
func (ac *AdminController) StorePaymentMethod(c *ctx.Context) {
	var in models.NewPaymentMethod
	if !c.BindJSON(&in) {
		return
	}
	id, err := ac.admin.AddPaymentMethod(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(map[string]string{"id": id})
}
