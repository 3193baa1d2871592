package repositories

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/app/models"
	"github.com/shashiranjanraj/campusmart/pkg/apperr"
	"github.com/shashiranjanraj/campusmart/pkg/collection"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
)

func commentTexts(cs []models.Comment) []string {
	return collection.Pluck(cs, func(c models.Comment) string { return c.CommentText })
}

func seedComments(t *testing.T, repo *CommentRepository) {
	t.Helper()
	for _, text := range []string{"first", "second", "third"} {
		_, err := repo.Add(context.Background(), "p1", "u1", "Asha", text)
		require.NoError(t, err)
	}
	_, err := repo.Add(context.Background(), "p2", "u1", "Asha", "elsewhere")
	require.NoError(t, err)
}

func TestCommentsNewestFirst(t *testing.T) {
	store := newStore()
	repo := NewCommentRepository(store)
	seedComments(t, repo)

	got, err := repo.ListByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, commentTexts(got))
	assert.Equal(t, "Asha", got[0].UserName)
}

func TestCommentsFallbackStillSorted(t *testing.T) {
	store := newStore(docstore.WithStrictIndexes())
	repo := NewCommentRepository(store)
	seedComments(t, repo)

	got, err := repo.ListByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, commentTexts(got))
}

func TestAddCommentLength(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	repo := NewCommentRepository(store)

	_, err := repo.Add(ctx, "p1", "u1", "Asha", strings.Repeat("a", 501))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = repo.Add(ctx, "p1", "u1", "Asha", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	docs, err := store.Find(ctx, docstore.From(CommentsCollection))
	require.NoError(t, err)
	assert.Empty(t, docs, "rejected comments are not written")

	_, err = repo.Add(ctx, "p1", "u1", "Asha", strings.Repeat("ü", 500))
	assert.NoError(t, err, "the limit counts characters, not bytes")
}

func TestListenByProduct(t *testing.T) {
	store := newStore()
	repo := NewCommentRepository(store)
	seedComments(t, repo)

	feed, err := repo.ListenByProduct(context.Background(), "p1")
	require.NoError(t, err)
	defer feed.Close()

	next := func() []string {
		select {
		case cs := <-feed.Updates():
			return commentTexts(cs)
		case <-time.After(time.Second):
			t.Fatal("no snapshot")
			return nil
		}
	}
	assert.Equal(t, []string{"third", "second", "first"}, next())

	store.BreakWatches(CommentsCollection, docstore.ErrIndexRequired)
	assert.Equal(t, []string{"third", "second", "first"}, next())
	assert.True(t, feed.FellBack())

	_, err = repo.Add(context.Background(), "p1", "u2", "Ravi", "fourth")
	require.NoError(t, err)
	assert.Equal(t, []string{"fourth", "third", "second", "first"}, next())
}

func TestNewestFirstUnstampedFirst(t *testing.T) {
	older, newer := epoch, epoch.Add(time.Hour)
	got := newestFirst([]models.Comment{
		{CommentText: "old", CreatedAt: &older},
		{CommentText: "pending"},
		{CommentText: "new", CreatedAt: &newer},
	})
	assert.Equal(t, []string{"pending", "new", "old"}, commentTexts(got))
}

func TestAddStoresTextAsGiven(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(newStore())

	_, err := repo.Add(ctx, "p1", "u1", "Asha", "  still works  ")
	require.NoError(t, err)

	comments, err := repo.ListByProduct(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "  still works  ", comments[0].CommentText)
}
