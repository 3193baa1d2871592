package models

import "time"

// Product is a catalogue entry in products/{id}.
type Product struct {
	ID          string     `bson:"-"                   json:"id"`
	Name        string     `bson:"name"                json:"name"        validate:"required"`
	Description string     `bson:"description"         json:"description"`
	Price       float64    `bson:"price"               json:"price"       validate:"gte=0"`
	Stock       int        `bson:"stock"               json:"stock"       validate:"gte=0"`
	ImageURL    string     `bson:"imageUrl"            json:"imageUrl"`
	SellerID    string     `bson:"sellerId"            json:"sellerId"`
	SellerName  string     `bson:"sellerName"          json:"sellerName"`
	CreatedAt   *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

func (p *Product) SetID(id string) { p.ID = id }

// NewProduct is the input to ProductRepository.Create. An empty ImageURL
// means "upload the attached image, or use the placeholder".
type NewProduct struct {
	Name        string  `json:"name"        validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Price       float64 `json:"price"       validate:"gte=0"`
	Stock       int     `json:"stock"       validate:"gte=0"`
	ImageURL    string  `json:"imageUrl"    validate:"nullable,url"`
	SellerID    string  `json:"sellerId"    validate:"required"`
	SellerName  string  `json:"sellerName"`
}

// ProductPatch is a partial update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string  `json:"name"        validate:"nullable,required,max=200"`
	Description *string  `json:"description" validate:"nullable,max=5000"`
	Price       *float64 `json:"price"       validate:"nullable,gte=0"`
	Stock       *int     `json:"stock"       validate:"nullable,gte=0"`
	ImageURL    *string  `json:"imageUrl"    validate:"nullable,url"`
}
