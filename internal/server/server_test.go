package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sonoswidget/internal/client"
	"github.com/GriffinCanCode/sonoswidget/internal/config"
	"github.com/GriffinCanCode/sonoswidget/internal/dom"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
)

const statusYAML = `rooms:
  Kitchen:
    transport: PLAYING
    title: Teardrop
    artist: Massive Attack
    album: Mezzanine
    img_src: http://speaker.local:1400/getaa?s=1&u=track
  Bedroom:
    transport: PLAYING
    title: stream-title
    channel: Radio Paradise
`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	statusPath := filepath.Join(dir, "status.yaml")
	require.NoError(t, os.WriteFile(statusPath, []byte(statusYAML), 0o644))

	cfg := config.Default()
	cfg.Server.HTTPOnly = true
	cfg.Provider.File = statusPath
	cfg.ImageProxy.CacheDir = filepath.Join(dir, "image_proxy")
	cfg.RateLimit.Enabled = false
	cfg.Logging.Development = true

	srv, err := NewServer(cfg, logging.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(srv.tracer.Close)
	t.Cleanup(ts.Close)
	return srv, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<div id="widget">`)
	assert.Contains(t, body, "/static/js/widget.js")
}

func TestStaticAssets(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/static/js/widget.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `sonos_name: TARGET`)

	resp, _ = get(t, ts.URL+"/static/css/widget.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/static/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBrowserClientKeepsHandleAndPatchesFragments(t *testing.T) {
	_, ts := newTestServer(t)

	_, body := get(t, ts.URL+"/static/js/widget.js")
	assert.Contains(t, body, "createContextualFragment(html)")
	assert.Contains(t, body, "el.appendChild(fragment)")
	assert.NotContains(t, body, "innerHTML")
	assert.Equal(t, 2, strings.Count(body, "socket = "), "socket is only assigned at declaration and on connect")
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","connections":0}`, body)

	resp, body = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `widget_http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestImageProxyRoute(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/image_proxy")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWidgetClientRendersRoom(t *testing.T) {
	srv, ts := newTestServer(t)

	page := dom.Blank()
	session, err := client.New(ts.URL, page, client.WithPeriod(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		html, err := page.InnerHTML(client.WidgetSelector)
		return err == nil && strings.Contains(html, "Teardrop")
	}, 2*time.Second, 5*time.Millisecond)

	html, err := page.InnerHTML(client.WidgetSelector)
	require.NoError(t, err)
	assert.Contains(t, html, "Massive Attack")
	assert.Contains(t, html, ts.URL+"/image_proxy?url=http%3A%2F%2Fspeaker.local%3A1400%2Fgetaa%3Fs%3D1%26u%3Dtrack")
	assert.Equal(t, 1, srv.Connections())
}

func TestShutdownClosesSessions(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Connections() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return srv.Connections() == 0 }, time.Second, 5*time.Millisecond)
}
