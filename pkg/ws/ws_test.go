package ws_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/campusmart/pkg/ws"
)

func TestPumpDeliversSnapshotsThenCloses(t *testing.T) {
	src := make(chan []string, 2)
	done := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done <- ws.Pump(w, r, src)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	src <- []string{"nice lamp"}
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `["nice lamp"]`, string(msg))

	src <- []string{"second", "nice lamp"}
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `["second","nice lamp"]`, string(msg))

	close(src)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not return")
	}
}

func TestPumpRejectsPlainHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	err := ws.Pump(rec, httptest.NewRequest(http.MethodGet, "/", nil), make(chan int))
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
