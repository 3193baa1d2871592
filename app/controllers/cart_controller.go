package controllers

import (
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/ctx"
)

type CartController struct {
	cart *repositories.CartRepository
}

func NewCartController(cart *repositories.CartRepository) *CartController {
	return &CartController{cart: cart}
}

type addToCartInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity"`
}

type quantityInput struct {
	Quantity int `json:"quantity"`
}

// GET /api/cart
func (cc *CartController) Index(c *ctx.Context) {
	lines, err := cc.cart.List(c.Context(), c.UserID())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]any{
		"items": lines,
		"total": cc.cart.Total(lines),
	})
}

// POST /api/cart; quantity defaults to 1.
func (cc *CartController) Add(c *ctx.Context) {
	var in addToCartInput
	if !c.BindJSON(&in) {
		return
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if err := cc.cart.Add(c.Context(), c.UserID(), in.ProductID, qty); err != nil {
		c.Fail(err)
		return
	}
	c.Created(map[string]int{"count": cc.cart.Count(c.Context(), c.UserID())})
}

// GET /api/cart/count
func (cc *CartController) Count(c *ctx.Context) {
	c.Success(map[string]int{"count": cc.cart.Count(c.Context(), c.UserID())})
}

// PATCH /api/cart/{itemId}
func (cc *CartController) Update(c *ctx.Context) {
	var in quantityInput
	if !c.BindJSON(&in) {
		return
	}
	id := c.Param("itemId")
	if err := cc.own(c, id); err != nil {
		c.Fail(err)
		return
	}
	if err := cc.cart.UpdateQuantity(c.Context(), id, in.Quantity); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Cart updated")
}

// DELETE /api/cart/{itemId}
func (cc *CartController) Remove(c *ctx.Context) {
	id := c.Param("itemId")
	if err := cc.own(c, id); err != nil {
		c.Fail(err)
		return
	}
	if err := cc.cart.Remove(c.Context(), id); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Item removed")
}

// DELETE /api/cart
func (cc *CartController) Clear(c *ctx.Context) {
	if err := cc.cart.Clear(c.Context(), c.UserID()); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Cart cleared")
}

// own checks that the line belongs to the signed-in user.
func (cc *CartController) own(c *ctx.Context, itemID string) error {
	item, err := cc.cart.Get(c.Context(), itemID)
	if err != nil {
		return err
	}
	if item.UserID != c.UserID() {
		return apperr.AccessDenied("cart item %s belongs to another user", itemID)
	}
	return nil
}
