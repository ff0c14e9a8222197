package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	assert.Equal(t, "css", NewMessage([]string{"dist/css/a.css", "dist/css/B.CSS"}).Type)
	assert.Equal(t, "reload", NewMessage([]string{"dist/css/a.css", "dist/js/app.js"}).Type)
	assert.Equal(t, "reload", NewMessage(nil).Type)
}

func TestInjectScript(t *testing.T) {
	page := []byte("<html><body><h1>Hi</h1></BODY></html>")
	got := string(InjectScript(page))
	assert.Equal(t, `<html><body><h1>Hi</h1><script src="/__livereload.js"></script></BODY></html>`, got)

	assert.Equal(t, `<p>x</p><script src="/__livereload.js"></script>`, string(InjectScript([]byte("<p>x</p>"))))
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html><body>home</body></html>"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "styles.min.css"), []byte("a{}"), 0644))

	hub := NewHub()
	srv := New(Config{Dir: dir}, hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts, hub, dir
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_StaticFilesAndInjection(t *testing.T) {
	ts, _, _ := newTestServer(t)

	status, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `home<script src="/__livereload.js"></script></body>`)

	status, body = get(t, ts.URL+"/css/styles.min.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a{}", body)

	status, _ = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = get(t, ts.URL+ScriptPath)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, ReloadPath)

	status, body = get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK\n", body)
}

func TestHub_BroadcastsReload(t *testing.T) {
	ts, hub, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Reload([]string{"dist/css/styles.min.css"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, Message{Type: "css", Paths: []string{"dist/css/styles.min.css"}}, msg)
}

func TestHub_ClientDisconnect(t *testing.T) {
	ts, hub, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// broadcasting with nobody listening is a no-op
	hub.Reload([]string{"a.html"})
}

func TestServer_StartAndShutdown(t *testing.T) {
	dir := t.TempDir()
	srv := New(Config{Dir: dir, Port: 0}, NewHub())

	require.NoError(t, srv.Start())
	assert.NotZero(t, srv.Port())

	status, _ := get(t, "http://127.0.0.1:"+strconv.Itoa(srv.Port())+"/health")
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, srv.Shutdown(context.Background()))
}
