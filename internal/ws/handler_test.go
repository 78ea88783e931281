package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
	"github.com/GriffinCanCode/sonoswidget/internal/protocol"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, name, base string) (string, error) {
	args := m.Called(ctx, name, base)
	return args.String(0), args.Error(1)
}

func setup(t *testing.T, renderer Renderer) (*Handler, *monitoring.Metrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	handler := NewHandler(renderer, logging.NewNop(), metrics)

	router := gin.New()
	router.GET("/", handler.HandleConnection)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return handler, metrics, "ws" + strings.TrimPrefix(server.URL, "http") + "/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func readUpdate(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	update, ok := protocol.ParseUpdate(data).Update()
	require.True(t, ok, "reply should be an update envelope: %s", data)
	return update.HTML
}

func TestRefreshRendersNamedRoom(t *testing.T) {
	renderer := new(mockRenderer)
	renderer.On("Render", mock.Anything, "Kitchen", mock.MatchedBy(func(base string) bool {
		return strings.HasPrefix(base, "http://127.0.0.1:")
	})).Return("<b>Kitchen</b>", nil)

	_, metrics, url := setup(t, renderer)
	conn := dial(t, url)

	send(t, conn, `{"action":"refresh","sonos_name":"Kitchen"}`)
	assert.Equal(t, "<b>Kitchen</b>", readUpdate(t, conn))

	renderer.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("out", "update")))
}

func TestIgnoredMessagesKeepConnectionOpen(t *testing.T) {
	renderer := new(mockRenderer)
	renderer.On("Render", mock.Anything, "Kitchen", mock.Anything).Return("ok", nil)
	renderer.On("Render", mock.Anything, "Broken", mock.Anything).Return("", errors.New("speaker offline"))

	_, metrics, url := setup(t, renderer)
	conn := dial(t, url)

	for _, msg := range []string{
		`{"sonos_name":"Kitchen"}`,
		`{"action":"refresh"}`,
		`{"action":"volume","sonos_name":"Kitchen"}`,
		`{"action":"refresh","sonos_name":"Broken"}`,
		`not json`,
		`{"action":"refresh","sonos_name":"Kitchen"}`,
	} {
		send(t, conn, msg)
	}

	// Only the last message produces a reply.
	assert.Equal(t, "ok", readUpdate(t, conn))

	renderer.AssertNumberOfCalls(t, "Render", 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("in", "ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("in", "malformed")))
}

func TestBinaryFrameEndsSession(t *testing.T) {
	handler, _, url := setup(t, new(mockRenderer))
	conn := dial(t, url)

	require.Eventually(t, func() bool { return handler.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return handler.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCloseAll(t *testing.T) {
	handler, metrics, url := setup(t, new(mockRenderer))
	first := dial(t, url)
	second := dial(t, url)

	require.Eventually(t, func() bool { return handler.Count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WSConnections))

	handler.CloseAll()

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	}
	require.Eventually(t, func() bool { return handler.Count() == 0 }, time.Second, 5*time.Millisecond)

	// New connections are refused after shutdown started.
	late := dial(t, url)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WSConnections))
}

func TestIsUpgrade(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, IsUpgrade(plain))

	upgrade := httptest.NewRequest(http.MethodGet, "/", nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	assert.True(t, IsUpgrade(upgrade))
}

func TestBaseURL(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "http://widget.local:8080/", nil)
	assert.Equal(t, "http://widget.local:8080", baseURL(plain))

	secure := httptest.NewRequest(http.MethodGet, "https://widget.local/", nil)
	secure.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://widget.local", baseURL(secure))

	proxied := httptest.NewRequest(http.MethodGet, "http://widget.local/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https, http")
	assert.Equal(t, "https://widget.local", baseURL(proxied))
}
