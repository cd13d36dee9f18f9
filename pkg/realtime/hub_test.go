package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, school string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?school=" + school
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubScopesInvalidationsBySchool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		school := r.URL.Query().Get("school")
		_ = hub.Serve(w, r, school, "user-"+school, nil)
	}))
	defer srv.Close()

	a := dial(t, srv, "s1")
	defer a.Close()
	b := dial(t, srv, "s2")
	defer b.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount("s1") == 1 && hub.ClientCount("s2") == 1
	}, time.Second, 10*time.Millisecond)

	hub.PublishInvalidation("s1", "classes:school:s1", "users:s1:STUDENT")

	_ = a.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := a.ReadMessage()
	require.NoError(t, err)
	var evt Event
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, EventInvalidate, evt.Type)
	assert.Equal(t, []string{"classes:school:s1", "users:s1:STUDENT"}, evt.Keys)

	_ = b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = b.ReadMessage()
	assert.Error(t, err)
}

func TestPublishIgnoresEmpty(t *testing.T) {
	hub := NewHub(nil)
	hub.PublishInvalidation("", "k")
	hub.PublishInvalidation("s1")
	assert.Len(t, hub.broadcast, 0)
}
