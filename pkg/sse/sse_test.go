package sse_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/pkg/sse"
)

func TestPipeWritesEventsUntilSourceCloses(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products/live", nil)

	src := make(chan []string, 2)
	src <- []string{"lamp"}
	src <- []string{"lamp", "desk"}
	close(src)

	stream := sse.New(rec, req)
	require.NotNil(t, stream)
	require.NoError(t, sse.Pipe(stream, "products", src, 0))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: products\n"))
	assert.Contains(t, body, `data: ["lamp","desk"]`)
	assert.True(t, strings.HasSuffix(body, "event: end\ndata: {}\n\n"))
}

type plainWriter struct{ http.ResponseWriter }

func TestNewRequiresFlusher(t *testing.T) {
	rec := httptest.NewRecorder()
	stream := sse.New(plainWriter{rec}, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, stream)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, stream.IsClosed())
}
