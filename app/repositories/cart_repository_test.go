package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
)

func newCart(store docstore.Store) *CartRepository {
	return NewCartRepository(store, newProducts(store, nil))
}

func cartDocs(t *testing.T, store docstore.Store, userID string) []docstore.Document {
	t.Helper()
	docs, err := store.Find(context.Background(), docstore.From(CartCollection).Where("userId", docstore.Eq, userID))
	require.NoError(t, err)
	return docs
}

func TestAddMergesDuplicateProduct(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.EnsureIndexes(ctx, Indexes()...))
	cart := newCart(store)

	require.NoError(t, cart.Add(ctx, "u1", "p1", 2))
	require.NoError(t, cart.Add(ctx, "u1", "p1", 3))
	require.NoError(t, cart.Add(ctx, "u2", "p1", 1))

	docs := cartDocs(t, store, "u1")
	require.Len(t, docs, 1, "a second add of the same product merges")
	item, err := cart.Get(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.NotNil(t, item.AddedAt)
	assert.Len(t, cartDocs(t, store, "u2"), 1)
}

func TestAddRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cart := newCart(store)

	assert.ErrorIs(t, cart.Add(ctx, "u1", "p1", 0), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, cart.Add(ctx, "", "p1", 1), apperr.ErrInvalidArgument)
	assert.Empty(t, cartDocs(t, store, "u1"))

	store.FailNext("add", CartCollection, docstore.ErrUnavailable)
	assert.ErrorIs(t, cart.Add(ctx, "u1", "p1", 1), apperr.ErrUpstream)
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cart := newCart(store)
	require.NoError(t, cart.Add(ctx, "u1", "p1", 2))
	id := cartDocs(t, store, "u1")[0].ID

	for _, q := range []int{0, -4} {
		assert.ErrorIs(t, cart.UpdateQuantity(ctx, id, q), apperr.ErrInvalidArgument)
	}
	item, err := cart.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity, "rejected updates leave the line untouched")

	require.NoError(t, cart.UpdateQuantity(ctx, id, 7))
	item, err = cart.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)

	assert.ErrorIs(t, cart.UpdateQuantity(ctx, "missing", 1), apperr.ErrNotFound)
}

func TestListJoinsProductsAndTotals(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cart := newCart(store)

	lamp := put(t, store, ProductsCollection, docstore.Fields{"name": "lamp", "price": 10.0, "stock": 5})
	mug := put(t, store, ProductsCollection, docstore.Fields{"name": "mug", "price": 15.0, "stock": 5})
	gone := put(t, store, ProductsCollection, docstore.Fields{"name": "desk", "price": 99.0, "stock": 1})

	require.NoError(t, cart.Add(ctx, "u1", lamp, 2))
	require.NoError(t, cart.Add(ctx, "u1", mug, 1))
	require.NoError(t, cart.Add(ctx, "u1", gone, 1))
	require.NoError(t, store.Delete(ctx, ProductsCollection, gone))

	lines, err := cart.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 2, "lines of deleted products are dropped")
	assert.Equal(t, "lamp", lines[0].Product.Name)
	assert.Equal(t, lamp, lines[0].Product.ID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "mug", lines[1].Product.Name)
	assert.InDelta(t, 35.0, cart.Total(lines), 1e-9)
	assert.Equal(t, 3, cart.Count(ctx, "u1"))

	empty, err := cart.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Zero(t, CartTotal(empty))
}

func TestListFailsOnProductReadError(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cart := newCart(store)
	lamp := put(t, store, ProductsCollection, docstore.Fields{"name": "lamp", "price": 10.0, "stock": 5})
	require.NoError(t, cart.Add(ctx, "u1", lamp, 1))

	store.FailNext("get", ProductsCollection, docstore.ErrUnavailable)
	_, err := cart.List(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cart := newCart(store)
	for _, p := range []string{"p1", "p2", "p3"} {
		require.NoError(t, cart.Add(ctx, "u1", p, 1))
	}
	require.NoError(t, cart.Add(ctx, "u2", "p1", 1))

	require.NoError(t, cart.Remove(ctx, cartDocs(t, store, "u1")[0].ID))
	assert.Equal(t, 2, cart.Count(ctx, "u1"))

	require.NoError(t, cart.Clear(ctx, "u1"))
	assert.Zero(t, cart.Count(ctx, "u1"))
	assert.Equal(t, 1, cart.Count(ctx, "u2"), "other carts are untouched")
	assert.NoError(t, cart.Clear(ctx, "u1"), "clearing an empty cart succeeds")
}

func TestCountIsZeroOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cart := newCart(store)
	require.NoError(t, cart.Add(ctx, "u1", "p1", 1))

	store.FailNext("find", CartCollection, docstore.ErrUnavailable)
	assert.Zero(t, cart.Count(ctx, "u1"))
	assert.Equal(t, 1, cart.Count(ctx, "u1"))
}

func TestCartTotal(t *testing.T) {
	lines := []models.CartLine{
		{Quantity: 2, Product: models.Product{Price: 10}},
		{Quantity: 1, Product: models.Product{Price: 15}},
	}
	assert.InDelta(t, 35.0, CartTotal(lines), 1e-9)
}
