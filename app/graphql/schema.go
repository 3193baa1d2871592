// Package graphql is the read-only GraphQL API over products and comments.
//
//	{ products { id name price stock } }
//	{ product(id: "p1") { name sellerName } comments(productId: "p1") { userName commentText } }
package graphql

import (
	"errors"
	"time"

	gql "github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	schemautil "github.com/shashiranjanraj/campusmart/pkg/graphql"
)

func timestamp(get func(src any) *time.Time) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (any, error) {
		if t := get(p.Source); t != nil {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return nil, nil
	}
}

var productType = gql.NewObject(gql.ObjectConfig{
	Name: "Product",
	Fields: gql.Fields{
		"id":          &gql.Field{Type: gql.NewNonNull(gql.ID)},
		"name":        &gql.Field{Type: gql.NewNonNull(gql.String)},
		"description": &gql.Field{Type: gql.String},
		"price":       &gql.Field{Type: gql.NewNonNull(gql.Float)},
		"stock":       &gql.Field{Type: gql.NewNonNull(gql.Int)},
		"imageUrl":    &gql.Field{Type: gql.String},
		"sellerId":    &gql.Field{Type: gql.String},
		"sellerName":  &gql.Field{Type: gql.String},
		"createdAt": &gql.Field{Type: gql.String, Resolve: timestamp(func(src any) *time.Time {
			return src.(models.Product).CreatedAt
		})},
		"updatedAt": &gql.Field{Type: gql.String, Resolve: timestamp(func(src any) *time.Time {
			return src.(models.Product).UpdatedAt
		})},
	},
})

var commentType = gql.NewObject(gql.ObjectConfig{
	Name: "Comment",
	Fields: gql.Fields{
		"id":          &gql.Field{Type: gql.NewNonNull(gql.ID)},
		"productId":   &gql.Field{Type: gql.NewNonNull(gql.ID)},
		"userId":      &gql.Field{Type: gql.String},
		"userName":    &gql.Field{Type: gql.String},
		"commentText": &gql.Field{Type: gql.NewNonNull(gql.String)},
		"createdAt": &gql.Field{Type: gql.String, Resolve: timestamp(func(src any) *time.Time {
			return src.(models.Comment).CreatedAt
		})},
	},
})

// NewSchema builds the schema over the given repositories.
func NewSchema(products *repositories.ProductRepository, comments *repositories.CommentRepository) (gql.Schema, error) {
	query := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"products": &gql.Field{
				Type:        gql.NewNonNull(gql.NewList(gql.NewNonNull(productType))),
				Description: "In-stock products, lowest stock first then newest.",
				Resolve: func(p gql.ResolveParams) (any, error) {
					return products.ListAvailable(p.Context)
				},
			},
			"product": &gql.Field{
				Type: productType,
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: func(p gql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					product, err := products.GetByID(p.Context, id)
					if errors.Is(err, apperr.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return product, nil
				},
			},
			"comments": &gql.Field{
				Type:        gql.NewNonNull(gql.NewList(gql.NewNonNull(commentType))),
				Description: "Comments on a product, newest first.",
				Args: gql.FieldConfigArgument{
					"productId": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: func(p gql.ResolveParams) (any, error) {
					id, _ := p.Args["productId"].(string)
					return comments.ListByProduct(p.Context, id)
				},
			},
		},
	})
	return schemautil.NewSchema(query)
}
