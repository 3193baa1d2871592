//go:build integration

package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/shashiranjanraj/campusmart/pkg/docstore"
)

func setupMongo(t *testing.T) *docstore.Mongo {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate mongo: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := docstore.ConnectMongo(ctx, uri, "campusmart_test", 100*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestMongoCRUD(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "products", docstore.Fields{"name": "lamp", "stock": 2})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "products", id)
	require.NoError(t, err)
	var p struct {
		Name      string     `bson:"name"`
		Stock     int        `bson:"stock"`
		CreatedAt *time.Time `bson:"createdAt"`
	}
	require.NoError(t, doc.Decode(&p))
	assert.Equal(t, "lamp", p.Name)
	assert.NotNil(t, p.CreatedAt, "Add stamps createdAt")

	require.NoError(t, store.Update(ctx, "products", id, docstore.Fields{"stock": 5}))
	require.NoError(t, store.Delete(ctx, "products", id))

	_, err = store.Get(ctx, "products", id)
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
	err = store.Update(ctx, "products", id, docstore.Fields{"stock": 1})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}

func TestMongoFindFiltersAndOrders(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureIndexes(ctx, docstore.Index{
		Collection: "comments",
		Keys:       []docstore.Order{{Field: "productId", Dir: docstore.Asc}, {Field: "rank", Dir: docstore.Desc}},
	}))

	for _, f := range []docstore.Fields{
		{"productId": "p1", "rank": 1},
		{"productId": "p1", "rank": 3},
		{"productId": "p2", "rank": 9},
		{"productId": "p1", "rank": 2},
	} {
		_, err := store.Add(ctx, "comments", f)
		require.NoError(t, err)
	}

	docs, err := store.Find(ctx, docstore.From("comments").
		Where("productId", docstore.Eq, "p1").
		OrderBy("rank", docstore.Desc))
	require.NoError(t, err)
	ranks := make([]int, len(docs))
	for i, d := range docs {
		var row struct {
			Rank int `bson:"rank"`
		}
		require.NoError(t, d.Decode(&row))
		ranks[i] = row.Rank
	}
	assert.Equal(t, []int{3, 2, 1}, ranks)
}

func TestMongoWatchDeliversChanges(t *testing.T) {
	store := setupMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := store.Watch(ctx, docstore.From("cartItems").Where("userId", docstore.Eq, "u1"))
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.Snapshots()
	assert.Empty(t, first)

	_, err = store.Add(ctx, "cartItems", docstore.Fields{"userId": "u1", "quantity": 1})
	require.NoError(t, err)

	select {
	case docs := <-sub.Snapshots():
		assert.Len(t, docs, 1)
	case <-ctx.Done():
		t.Fatal("no snapshot after insert")
	}
}
