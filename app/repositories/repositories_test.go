package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/pkg/docstore"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// newStore returns a memory store whose clock advances one minute per write.
func newStore(opts ...docstore.MemoryOption) *docstore.Memory {
	n := 0
	clock := docstore.WithClock(func() time.Time {
		n++
		return epoch.Add(time.Duration(n) * time.Minute)
	})
	return docstore.NewMemory(append([]docstore.MemoryOption{clock}, opts...)...)
}

func put(t *testing.T, store docstore.Store, collection string, f docstore.Fields) string {
	t.Helper()
	id, err := store.Add(context.Background(), collection, f)
	require.NoError(t, err)
	return id
}
