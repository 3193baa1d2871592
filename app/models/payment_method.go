package models

import "time"

// PaymentMethod is an entry in paymentMethods/{id}.
type PaymentMethod struct {
	ID        string     `bson:"-"                   json:"id"`
	Type      string     `bson:"type"                json:"type"    validate:"required"`
	Details   string     `bson:"details"             json:"details"`
	IsActive  bool       `bson:"isActive"            json:"isActive"`
	CreatedAt *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

func (p *PaymentMethod) SetID(id string) { p.ID = id }

// NewPaymentMethod is the input to AdminRepository.AddPaymentMethod.
type NewPaymentMethod struct {
	Type    string `json:"type"    validate:"required,max=50"`
	Details string `json:"details" validate:"max=500"`
}
