package live_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/live"
)

type row struct {
	ID   string `bson:"-"`
	Name string `bson:"name"`
	Rank int    `bson:"rank"`
}

func decodeRow(d docstore.Document) (row, error) {
	var r row
	if err := d.Decode(&r); err != nil {
		return row{}, err
	}
	if r.Name == "" {
		return row{}, errors.New("name missing")
	}
	r.ID = d.ID
	return r, nil
}

func byRankDesc(rows []row) []row {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank > rows[j].Rank })
	return rows
}

func plan() live.Plan[row] {
	base := docstore.From("rows").Where("group", docstore.Eq, "g")
	return live.Plan[row]{
		Name:     "rows.byGroup",
		Primary:  base.OrderBy("rank", docstore.Desc),
		Fallback: base,
		Decode:   decodeRow,
		Reshape:  byRankDesc,
	}
}

func next(t *testing.T, feed *live.Feed[row]) []string {
	t.Helper()
	select {
	case rows, ok := <-feed.Updates():
		require.True(t, ok, "feed ended: %v", feed.Err())
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Name
		}
		return out
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
		return nil
	}
}

func seed(t *testing.T, store docstore.Store) {
	t.Helper()
	ctx := context.Background()
	for _, f := range []docstore.Fields{
		{"group": "g", "name": "low", "rank": 1},
		{"group": "g", "name": "high", "rank": 3},
		{"group": "other", "name": "elsewhere", "rank": 9},
		{"group": "g", "name": "mid", "rank": 2},
	} {
		_, err := store.Add(ctx, "rows", f)
		require.NoError(t, err)
	}
}

func TestPrimaryServesOrderedSnapshots(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)

	feed, err := live.Listen(context.Background(), store, plan())
	require.NoError(t, err)
	defer feed.Close()

	assert.False(t, feed.FellBack())
	assert.Equal(t, []string{"high", "mid", "low"}, next(t, feed))

	_, err = store.Add(context.Background(), "rows", docstore.Fields{"group": "g", "name": "top", "rank": 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "high", "mid", "low"}, next(t, feed))
}

func TestFallbackWhenPrimaryCannotOpen(t *testing.T) {
	store := docstore.NewMemory(docstore.WithStrictIndexes())
	seed(t, store)

	feed, err := live.Listen(context.Background(), store, plan())
	require.NoError(t, err)
	defer feed.Close()

	assert.True(t, feed.FellBack())
	assert.Equal(t, []string{"high", "mid", "low"}, next(t, feed), "fallback snapshots are reshaped")
}

func TestFallbackWhenPrimaryBreaks(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)

	feed, err := live.Listen(context.Background(), store, plan())
	require.NoError(t, err)
	defer feed.Close()
	assert.Equal(t, []string{"high", "mid", "low"}, next(t, feed))

	store.BreakWatches("rows", docstore.ErrIndexRequired)
	assert.Equal(t, []string{"high", "mid", "low"}, next(t, feed))
	assert.True(t, feed.FellBack())

	_, err = store.Add(context.Background(), "rows", docstore.Fields{"group": "g", "name": "top", "rank": 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "high", "mid", "low"}, next(t, feed))
}

func TestFallbackFailureEndsFeed(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)

	feed, err := live.Listen(context.Background(), store, plan())
	require.NoError(t, err)
	next(t, feed)

	store.BreakWatches("rows", errors.New("primary lost"))
	next(t, feed)

	lost := errors.New("fallback lost")
	store.BreakWatches("rows", lost)
	select {
	case <-feed.Done():
	case <-time.After(time.Second):
		t.Fatal("feed kept running after its fallback failed")
	}
	assert.ErrorIs(t, feed.Err(), lost)
}

func TestFallbackOpenFailureIsReturned(t *testing.T) {
	store := docstore.NewMemory()
	primary := errors.New("primary unavailable")
	fallback := errors.New("fallback unavailable")
	store.FailNext("watch", "rows", primary)
	store.FailNext("watch", "rows", fallback)

	feed, err := live.Listen(context.Background(), store, plan())
	assert.Nil(t, feed)
	assert.ErrorIs(t, err, fallback)
}

func TestMalformedDocumentsAreSkipped(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)
	_, err := store.Add(context.Background(), "rows", docstore.Fields{"group": "g", "rank": 7})
	require.NoError(t, err)

	feed, err := live.Listen(context.Background(), store, plan())
	require.NoError(t, err)
	defer feed.Close()
	assert.Equal(t, []string{"high", "mid", "low"}, next(t, feed))
}

func TestCloseAndCancel(t *testing.T) {
	store := docstore.NewMemory()

	feed, err := live.Listen(context.Background(), store, plan())
	require.NoError(t, err)
	next(t, feed)
	feed.Close()
	assert.NoError(t, feed.Err())
	assert.Equal(t, 0, store.Watchers("rows"))

	ctx, cancel := context.WithCancel(context.Background())
	feed, err = live.Listen(ctx, store, plan())
	require.NoError(t, err)
	cancel()
	select {
	case <-feed.Done():
	case <-time.After(time.Second):
		t.Fatal("feed outlived its context")
	}
	assert.NoError(t, feed.Err())
}

func TestOnceUsesPrimary(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)

	rows, fellBack, err := live.Once(context.Background(), store, plan())
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Len(t, rows, 3)
	assert.Equal(t, "high", rows[0].Name)
}

func TestOnceFallsBackAndReshapes(t *testing.T) {
	store := docstore.NewMemory(docstore.WithStrictIndexes())
	seed(t, store)

	rows, fellBack, err := live.Once(context.Background(), store, plan())
	require.NoError(t, err)
	assert.True(t, fellBack)
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"high", "mid", "low"}, names)
}

func TestOnceFallbackFailure(t *testing.T) {
	store := docstore.NewMemory()
	lost := errors.New("backend down")
	store.FailNext("find", "rows", docstore.ErrIndexRequired)
	store.FailNext("find", "rows", lost)

	rows, _, err := live.Once(context.Background(), store, plan())
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, lost)
}

func TestOnceDoesNotFallBackOnCancel(t *testing.T) {
	store := docstore.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, fellBack, err := live.Once(ctx, store, plan())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fellBack)
}
