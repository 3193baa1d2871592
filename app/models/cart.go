package models

import "time"

// CartItem is one line in cart/{id}. There is at most one line per
// (UserID, ProductID).
type CartItem struct {
	ID        string     `bson:"-"                 json:"id"`
	UserID    string     `bson:"userId"            json:"userId"    validate:"required"`
	ProductID string     `bson:"productId"         json:"productId" validate:"required"`
	Quantity  int        `bson:"quantity"          json:"quantity"  validate:"gt=0"`
	AddedAt   *time.Time `bson:"addedAt,omitempty" json:"addedAt,omitempty"`
}

func (c *CartItem) SetID(id string) { c.ID = id }

// CartLine is a cart item joined with its product.
type CartLine struct {
	CartItemID string  `json:"cartItemId"`
	Quantity   int     `json:"quantity"`
	Product    Product `json:"product"`
}
