package models

import "time"

// MaxCommentLength is the longest comment accepted, in characters.
const MaxCommentLength = 500

// Comment is an entry in comments/{id}. CreatedAt is nil until the backend
// has applied its timestamp.
type Comment struct {
	ID          string     `bson:"-"                   json:"id"`
	ProductID   string     `bson:"productId"           json:"productId"   validate:"required"`
	UserID      string     `bson:"userId"              json:"userId"`
	UserName    string     `bson:"userName"            json:"userName"`
	CommentText string     `bson:"commentText"         json:"commentText" validate:"required,max=500"`
	CreatedAt   *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

func (c *Comment) SetID(id string) { c.ID = id }
