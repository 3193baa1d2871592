package graphql_test

import (
	"context"
	"testing"

	gql "github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/app/graphql"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
)

func setup(t *testing.T) (gql.Schema, string) {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory()
	for _, p := range []docstore.Fields{
		{"name": "lamp", "price": 12.5, "stock": 3, "sellerName": "Asha", "createdAt": docstore.ServerTimestamp},
		{"name": "chair", "price": 25.0, "stock": 0},
	} {
		_, err := store.Add(ctx, repositories.ProductsCollection, p)
		require.NoError(t, err)
	}
	docs, err := store.Find(ctx, docstore.From(repositories.ProductsCollection).Where("name", docstore.Eq, "lamp"))
	require.NoError(t, err)
	lamp := docs[0].ID

	comments := repositories.NewCommentRepository(store)
	_, err = comments.Add(ctx, lamp, "u1", "Ravi", "bright enough")
	require.NoError(t, err)

	schema, err := graphql.NewSchema(repositories.NewProductRepository(store, nil), comments)
	require.NoError(t, err)
	return schema, lamp
}

func run(t *testing.T, schema gql.Schema, query string, vars map[string]any) map[string]any {
	t.Helper()
	res := gql.Do(gql.Params{Schema: schema, RequestString: query, VariableValues: vars, Context: context.Background()})
	require.Empty(t, res.Errors)
	return res.Data.(map[string]any)
}

func TestProductsQuery(t *testing.T) {
	schema, lamp := setup(t)
	data := run(t, schema, `{ products { id name price stock sellerName createdAt } }`, nil)

	products := data["products"].([]any)
	require.Len(t, products, 1, "out of stock products are not listed")
	p := products[0].(map[string]any)
	assert.Equal(t, lamp, p["id"])
	assert.Equal(t, "lamp", p["name"])
	assert.Equal(t, 12.5, p["price"])
	assert.Equal(t, 3, p["stock"])
	assert.Equal(t, "Asha", p["sellerName"])
	assert.NotEmpty(t, p["createdAt"])
}

func TestProductAndComments(t *testing.T) {
	schema, lamp := setup(t)
	data := run(t, schema, `query($id: ID!) {
		product(id: $id) { name }
		comments(productId: $id) { userName commentText }
		missing: product(id: "nope") { name }
	}`, map[string]any{"id": lamp})

	assert.Equal(t, map[string]any{"name": "lamp"}, data["product"])
	assert.Nil(t, data["missing"])
	assert.Equal(t, []any{map[string]any{"userName": "Ravi", "commentText": "bright enough"}}, data["comments"])
}
