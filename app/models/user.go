package models

import "time"

// Roles a profile can hold.
const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User is the profile stored at users/{uid}. The document id equals the
// identity uid.
type User struct {
	ID        string     `bson:"-"                   json:"id"`
	UserID    string     `bson:"userId"              json:"userId"`
	Name      string     `bson:"name"                json:"name"`
	Email     string     `bson:"email"               json:"email"     validate:"required"`
	Role      string     `bson:"role"                json:"role"      validate:"required,in=user,seller,admin"`
	IsActive  bool       `bson:"isActive"            json:"isActive"`
	CreatedAt *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

func (u *User) SetID(id string) { u.ID = id }

// IsSeller reports whether the profile may use seller features. Admins may.
func (u *User) IsSeller() bool { return u.Role == RoleSeller || u.Role == RoleAdmin }
